package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CheckFFmpeg reports the FFmpeg binary snapshot capture will execute.
//
// A configured value containing a path separator is used as-is and must be an
// executable file; a bare name is resolved from PATH. An empty value falls
// back to "ffmpeg".
func CheckFFmpeg(configured string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Grabs camera frames for accepted weighings",
	}

	binary := strings.TrimSpace(configured)
	if binary == "" {
		binary = "ffmpeg"
	}
	result.Command = binary

	if strings.ContainsRune(binary, filepath.Separator) {
		info, err := os.Stat(binary)
		if err != nil {
			result.Detail = fmt.Sprintf("binary %q not found", binary)
			return result
		}
		if !isExecutable(info) {
			result.Detail = fmt.Sprintf("binary %q is not executable", binary)
			return result
		}
		result.Available = true
		return result
	}

	resolved, err := exec.LookPath(binary)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", binary)
		return result
	}
	result.Command = resolved
	result.Available = true
	return result
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
