//go:build !unix

package whisper

import "os/exec"

// configureProcessGroup keeps the exec.CommandContext default on platforms
// without process groups: only the direct child is killed.
func configureProcessGroup(cmd *exec.Cmd) {}
