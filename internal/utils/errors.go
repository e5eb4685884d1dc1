package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a download failure so a calling orchestrator can
// decide whether retrying the whole job makes sense. The engine itself never
// retries across kinds.
type ErrorKind int

const (
	KindValidation ErrorKind = iota // bad or forbidden URL, rejected before I/O
	KindNetwork                     // connect, timeout, TLS
	KindProtocol                    // unexpected status or missing range headers
	KindDisk                        // insufficient space or write failure
	KindIncompleteTransfer          // reassembly invoked on a non-complete segment set
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindProtocol:
		return "protocol"
	case KindDisk:
		return "disk"
	case KindIncompleteTransfer:
		return "incomplete-transfer"
	}
	return "unknown"
}

type DownloadError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Op, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

func ValidationError(op string, err error) error {
	return &DownloadError{Kind: KindValidation, Op: op, Err: err}
}

func NetworkError(op string, err error) error {
	return &DownloadError{Kind: KindNetwork, Op: op, Err: err}
}

func ProtocolError(op string, err error) error {
	return &DownloadError{Kind: KindProtocol, Op: op, Err: err}
}

func DiskError(op string, err error) error {
	return &DownloadError{Kind: KindDisk, Op: op, Err: err}
}

func IncompleteTransferError(op string, err error) error {
	return &DownloadError{Kind: KindIncompleteTransfer, Op: op, Err: err}
}

// IsKind reports whether any error in err's chain is a DownloadError of the
// given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
