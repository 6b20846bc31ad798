//go:build !unix

package download

import "os/exec"

// KillGroupOnCancel leaves cmd unchanged; cancellation kills only the tool itself.
func KillGroupOnCancel(cmd *exec.Cmd) {}
