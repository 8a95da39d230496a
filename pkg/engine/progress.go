package engine

// DefaultCallbackDelaySeconds is the delay suggested to the orchestrator
// between stabilization ticks.
const DefaultCallbackDelaySeconds = 5

// ProgressSignal is the result of one engine invocation.
// It is built by the constructors below and never modified afterwards.
type ProgressSignal struct {
	// Status tells the orchestrator whether to stop or re-invoke.
	Status OperationStatus `json:"status"`

	// Operation is the operation that produced the signal.
	Operation Operation `json:"operation"`

	// Model is the resulting model. Nil on Delete success and on failure.
	Model *ResourceModel `json:"model,omitempty"`

	// Models is the page of minimal models returned by List.
	Models []ResourceModel `json:"models,omitempty"`

	// NextToken is the List continuation token from the provider.
	NextToken string `json:"next_token,omitempty"`

	// ErrorKind is set on failure.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// Message is the failure message.
	Message string `json:"message,omitempty"`

	// CallbackContext resumes the operation on the next invocation.
	CallbackContext *CallbackContext `json:"callback_context,omitempty"`

	// CallbackDelaySeconds is the suggested wait before the next invocation.
	CallbackDelaySeconds int `json:"callback_delay_seconds,omitempty"`

	err *Error
}

// Success builds a SUCCESS signal.
func Success(op Operation, model *ResourceModel) *ProgressSignal {
	return &ProgressSignal{
		Status:    StatusSuccess,
		Operation: op,
		Model:     model,
	}
}

// ListSuccess builds a SUCCESS signal for one List page.
func ListSuccess(models []ResourceModel, nextToken string) *ProgressSignal {
	if models == nil {
		models = []ResourceModel{}
	}
	return &ProgressSignal{
		Status:    StatusSuccess,
		Operation: OperationList,
		Models:    models,
		NextToken: nextToken,
	}
}

// InProgress builds an IN_PROGRESS signal that resumes from cb.
func InProgress(op Operation, model *ResourceModel, cb *CallbackContext) *ProgressSignal {
	return &ProgressSignal{
		Status:               StatusInProgress,
		Operation:            op,
		Model:                model,
		CallbackContext:      cb,
		CallbackDelaySeconds: DefaultCallbackDelaySeconds,
	}
}

// Failed builds a FAILED signal. cb is the context of the failing tick and
// may be nil when nothing has been mutated yet.
func Failed(op Operation, err *Error, cb *CallbackContext) *ProgressSignal {
	return &ProgressSignal{
		Status:          StatusFailed,
		Operation:       op,
		ErrorKind:       err.Kind,
		Message:         err.Error(),
		CallbackContext: cb,
		err:             err,
	}
}

// Err returns the classified error of a FAILED signal, or nil.
// Signals decoded from JSON carry only the kind and message.
func (p *ProgressSignal) Err() error {
	if p.Status != StatusFailed {
		return nil
	}
	if p.err != nil {
		return p.err
	}
	return NewError(p.ErrorKind, p.Message, nil)
}

// Retryable reports whether the orchestrator may re-run the failed tick
// with the same callback context.
func (p *ProgressSignal) Retryable() bool {
	return p.Status == StatusFailed && p.CallbackContext != nil && IsRetryableKind(p.ErrorKind)
}
