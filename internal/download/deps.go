package download

import (
	"errors"
	"os/exec"
)

// CheckTool verifies that name resolves to an executable.
func CheckTool(name string) error {
	if name == "" {
		name = DefaultTool
	}
	if _, err := exec.LookPath(name); err != nil {
		return &ToolMissingError{Tool: name, Err: err}
	}
	return nil
}

// CheckTools checks every tool and reports all that are missing.
func CheckTools(names ...string) error {
	var errs []error
	for _, name := range names {
		if err := CheckTool(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
