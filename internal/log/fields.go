package log

import "notimo/internal/core"

// Attribute keys.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldModule        = "module"
	FieldTransactionID = "transaction_id"
	FieldLineIndex     = "line_index"
	FieldField         = "field"
	FieldRaw           = "raw"
	FieldCount         = "count"
	FieldVersion       = "version"
	FieldBackend       = "backend"
)

// Component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentService = "service"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentRemote  = "remote"
	ComponentBackend = "backend"
	ComponentCache   = "cache"
)

// Operations that report data-quality diagnostics.
const (
	OpRefresh   = "refresh"
	OpAggregate = "aggregate"
)

// Fields collects attributes before they are flattened for slog.
type Fields map[string]any

func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

// WithDiagnostic describes a malformed transaction value: where it sits and
// what it held.
func (f Fields) WithDiagnostic(d core.Diagnostic) Fields {
	f[FieldTransactionID] = d.TransactionID
	f[FieldLineIndex] = d.LineIndex
	f[FieldField] = d.Field
	f[FieldRaw] = d.Raw
	return f.WithError(d.Err)
}

func (f Fields) WithHTTPRequest(r requestLine) Fields {
	f[FieldMethod] = r.method
	f[FieldPath] = r.path
	if r.query != "" {
		f[FieldQuery] = r.query
	}
	f[FieldUserAgent] = r.userAgent
	return f
}

func (f Fields) WithHTTPResponse(statusCode int, durationMs int64) Fields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice flattens f into slog's alternating key value form.
func (f Fields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
