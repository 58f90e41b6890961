package export

import (
	"fmt"
	"os/exec"
	"strings"
)

// exportDOCX converts the board report HTML to DOCX with pandoc, which
// handles the OOXML packaging far better than anything hand-rolled.
func exportDOCX(html string, title string) (*Result, error) {
	if _, err := exec.LookPath("pandoc"); err != nil {
		return nil, fmt.Errorf("%w: pandoc not installed", ErrDOCXDependencyMissing)
	}

	cmd := exec.Command("pandoc",
		"-f", "html",
		"-t", "docx",
		"--standalone",
		"--metadata", "title="+title,
		"-o", "-",
	)
	cmd.Stdin = strings.NewReader(html)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("pandoc failed: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("pandoc execution failed: %w", err)
	}

	return &Result{
		Data:     output,
		Filename: sanitizeFilename(title) + ".docx",
		MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}, nil
}
