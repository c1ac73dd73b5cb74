// Package ledger persists per-object transfer outcomes. A run produces
// two append-only files, one for successes and one for failures, with
// one record per processed object.
package ledger

import (
	"errors"
	"fmt"
	"os"

	"github.com/tzhu0704/s3warmup/internal/executor"
)

const (
	successSuffix = ".success"
	failureSuffix = ".failure"
)

type Writer struct {
	successFile *os.File
	failureFile *os.File
}

// NewWriter opens the success and failure ledger files for appending.
// basePath is the common file name without the suffix.
func NewWriter(basePath string) (*Writer, error) {
	if basePath == "" {
		return nil, errors.New("ledger base path is empty")
	}
	successFile, err := os.OpenFile(basePath+successSuffix,
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	failureFile, err := os.OpenFile(basePath+failureSuffix,
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		successFile.Close()
		return nil, err
	}
	return &Writer{
		successFile: successFile,
		failureFile: failureFile,
	}, nil
}

// Record appends one outcome to the matching ledger file.
func (w *Writer) Record(o executor.Outcome) error {
	f := w.failureFile
	if o.Phase.Succeeded() {
		f = w.successFile
	}
	_, err := fmt.Fprintf(f, "%s\t%s\t%s\n",
		o.Phase, o.Entry.SourceKey, o.Entry.TargetKey)
	return err
}

func (w *Writer) Close() error {
	return errors.Join(w.successFile.Close(), w.failureFile.Close())
}

// SuccessPath and FailurePath report the file names a writer with the
// given base path records to.
func SuccessPath(basePath string) string {
	return basePath + successSuffix
}

func FailurePath(basePath string) string {
	return basePath + failureSuffix
}
