package pdf

import (
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// IsEncrypted checks if a PDF file is encrypted/password-protected.
func IsEncrypted(filename string) (bool, error) {
	// Page counting fails on encrypted files opened without a password.
	_, err := api.PageCountFile(filename)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "encrypt") ||
			strings.Contains(msg, "password") ||
			strings.Contains(msg, "decrypt") {
			return true, nil
		}
		return false, fmt.Errorf("failed to check PDF encryption status: %w", err)
	}
	return false, nil
}

// decryptIfNeeded returns a path that pdfcpu can read without a password.
// Unencrypted files and calls without a password return filename itself.
func decryptIfNeeded(filename, password string) (string, func(), error) {
	noop := func() {}
	if _, err := os.Stat(filename); err != nil {
		return "", noop, fmt.Errorf("failed to open PDF: %w", err)
	}
	if password == "" {
		return filename, noop, nil
	}
	encrypted, err := IsEncrypted(filename)
	if err != nil {
		return "", noop, err
	}
	if !encrypted {
		return filename, noop, nil
	}

	tempFile, err := os.CreateTemp("", "decrypted-*.pdf")
	if err != nil {
		return "", noop, fmt.Errorf("failed to create temporary file: %w", err)
	}
	_ = tempFile.Close()
	cleanup := func() { _ = os.Remove(tempFile.Name()) }

	config := model.NewDefaultConfiguration()
	config.UserPW = password
	config.OwnerPW = password
	if err := api.DecryptFile(filename, tempFile.Name(), config); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("failed to decrypt PDF: %w", err)
	}
	return tempFile.Name(), cleanup, nil
}
