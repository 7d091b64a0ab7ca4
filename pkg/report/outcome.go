package report

// Kind is the terminal state of one processed file
type Kind string

const (
	KindSkipped            Kind = "skipped"
	KindUploaded           Kind = "uploaded"
	KindUploadFailed       Kind = "upload_failed"
	KindVerificationFailed Kind = "verification_failed"
)

// ErrorKind classifies why a file failed
type ErrorKind string

const (
	ErrRemoteUnreachable    ErrorKind = "RemoteUnreachable"
	ErrChecksumUnavailable  ErrorKind = "ChecksumUnavailable"
	ErrPartialTransfer      ErrorKind = "PartialTransfer"
	ErrVerificationMismatch ErrorKind = "VerificationMismatch"
	ErrPathResolution       ErrorKind = "PathResolutionError"
)

// Outcome records what happened to a single local file
type Outcome struct {
	Kind      Kind      `json:"kind"`
	Path      string    `json:"path"`             // Remote path
	Source    string    `json:"source,omitempty"` // Local path
	Bytes     int64     `json:"bytes,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func Skipped(source, path, reason string) Outcome {
	return Outcome{Kind: KindSkipped, Source: source, Path: path, Reason: reason}
}

func Uploaded(source, path string, bytes int64, reason string) Outcome {
	return Outcome{Kind: KindUploaded, Source: source, Path: path, Bytes: bytes, Reason: reason}
}

func UploadFailed(source, path string, kind ErrorKind, err error) Outcome {
	o := Outcome{Kind: KindUploadFailed, Source: source, Path: path, ErrorKind: kind}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

func VerificationFailed(source, path string, err error) Outcome {
	o := Outcome{Kind: KindVerificationFailed, Source: source, Path: path, ErrorKind: ErrVerificationMismatch}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

// Failed reports whether the outcome counts towards the failed total
func (o Outcome) Failed() bool {
	return o.Kind == KindUploadFailed || o.Kind == KindVerificationFailed
}
