package domain

import "time"

// RequestInfo is the per-request state handed explicitly to every operation.
type RequestInfo struct {
	RequestID      string
	ClientIdentity string
	CSRFToken      string
	Now            time.Time
}

// Request is the closed set of protocol requests understood by the upload state machine.
type Request interface {
	request()
}

// CreateRequest opens a new session.
type CreateRequest struct {
	Info      RequestInfo
	TotalSize int64
	Metadata  map[string]string
}

// PatchRequest appends Body at Offset.
type PatchRequest struct {
	Info      RequestInfo
	SessionID string
	Offset    int64
	Body      []byte
	Checksum  *Checksum
}

// HeadRequest asks for the authoritative offset.
type HeadRequest struct {
	Info      RequestInfo
	SessionID string
}

// OptionsRequest asks for server capabilities. It carries no state.
type OptionsRequest struct{}

func (CreateRequest) request()  {}
func (PatchRequest) request()   {}
func (HeadRequest) request()    {}
func (OptionsRequest) request() {}

// Checksum is a client-declared digest of a PATCH body.
type Checksum struct {
	Algorithm string
	Sum       []byte
}

// Response mirrors Request: one variant per request kind.
type Response interface {
	response()
}

type CreatedResponse struct {
	SessionID string
	ExpiresAt time.Time
}

type PatchResponse struct {
	Offset int64
	// FileID is set once the upload has been finalized.
	FileID *int64
}

type HeadResponse struct {
	Offset    int64
	TotalSize int64
}

type Capabilities struct {
	Version            string
	Extensions         []string
	MaxSize            int64
	ChecksumAlgorithms []string
}

func (CreatedResponse) response() {}
func (PatchResponse) response()   {}
func (HeadResponse) response()    {}
func (Capabilities) response()    {}
