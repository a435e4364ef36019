package copier

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// VerificationFailure names one file that failed verification and why.
type VerificationFailure struct {
	Path   string
	Reason string
}

// VerifyFilesIntegrity implements spec §4.4's verify_files_integrity:
// walks folder and fails any file lacking a matching sidecar digest, or
// whose sidecar digest no longer matches its current contents.
func VerifyFilesIntegrity(folder string, algo Algo) ([]VerificationFailure, error) {
	var failures []VerificationFailure
	suffix := "." + string(algo)

	err := filepath.Walk(folder, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, suffix) {
			return nil
		}

		sidecar := path + suffix
		recorded, readErr := os.ReadFile(sidecar)
		if readErr != nil {
			failures = append(failures, VerificationFailure{Path: path, Reason: "missing sidecar digest"})
			return nil
		}

		actual, hashErr := hashFile(path, algo)
		if hashErr != nil {
			failures = append(failures, VerificationFailure{Path: path, Reason: fmt.Sprintf("hash failed: %v", hashErr)})
			return nil
		}

		want := strings.TrimSpace(string(recorded))
		if actual != want {
			failures = append(failures, VerificationFailure{Path: path, Reason: fmt.Sprintf("digest mismatch: sidecar=%s actual=%s", want, actual)})
		}
		return nil
	})
	if err != nil {
		return failures, fmt.Errorf("copier: walk %s: %w", folder, err)
	}
	return failures, nil
}
