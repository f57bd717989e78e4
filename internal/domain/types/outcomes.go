package types

// IngestOutcome is the result of IngestMessage.
type IngestOutcome int

const (
	IngestCreated IngestOutcome = iota + 1
	IngestAlreadyPresent
)

func (o IngestOutcome) String() string {
	switch o {
	case IngestCreated:
		return "created"
	case IngestAlreadyPresent:
		return "already-present"
	}
	return "unknown"
}

// ExtendedPayloadOutcome is the result of IngestExtendedPayload.
type ExtendedPayloadOutcome int

const (
	ExtendedPayloadApplied ExtendedPayloadOutcome = iota + 1
	ExtendedPayloadMessageNotFound
)

func (o ExtendedPayloadOutcome) String() string {
	switch o {
	case ExtendedPayloadApplied:
		return "applied"
	case ExtendedPayloadMessageNotFound:
		return "message-not-found"
	}
	return "unknown"
}

// ChunkOutcome is the result of IngestAttachmentChunk.
type ChunkOutcome int

const (
	ChunkPartial ChunkOutcome = iota + 1
	ChunkCompleted
	ChunkAttachmentNotFound
	ChunkAlreadyComplete
)

func (o ChunkOutcome) String() string {
	switch o {
	case ChunkPartial:
		return "partial"
	case ChunkCompleted:
		return "completed"
	case ChunkAttachmentNotFound:
		return "attachment-not-found"
	case ChunkAlreadyComplete:
		return "already-complete"
	}
	return "unknown"
}

// MarkOutcome is the result of MarkListedAndScheduleDeletion.
type MarkOutcome int

const (
	MarkApplied MarkOutcome = iota + 1
	MarkAlreadyRequested
	MarkMessageNotFound
)

func (o MarkOutcome) String() string {
	switch o {
	case MarkApplied:
		return "applied"
	case MarkAlreadyRequested:
		return "already-requested"
	case MarkMessageNotFound:
		return "message-not-found"
	}
	return "unknown"
}

// DeleteOutcome is the result of deleting a persisted record.
type DeleteOutcome int

const (
	Deleted DeleteOutcome = iota + 1
	DeleteNotFound
	DeleteNotRequested
)

func (o DeleteOutcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case DeleteNotFound:
		return "not-found"
	case DeleteNotRequested:
		return "not-requested"
	}
	return "unknown"
}

// AttemptOutcome is the result of RecordAttempt.
type AttemptOutcome int

const (
	AttemptRecorded AttemptOutcome = iota + 1
	AttemptAlreadyResolved
	AttemptNotRetryable
	AttemptNotFound
)

func (o AttemptOutcome) String() string {
	switch o {
	case AttemptRecorded:
		return "recorded"
	case AttemptAlreadyResolved:
		return "already-resolved"
	case AttemptNotRetryable:
		return "not-retryable"
	case AttemptNotFound:
		return "not-found"
	}
	return "unknown"
}

// ResolveOutcome is the result of Resolve.
type ResolveOutcome int

const (
	Resolved ResolveOutcome = iota + 1
	AlreadyResolved
	ResolveNotFound
)

func (o ResolveOutcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case AlreadyResolved:
		return "already-resolved"
	case ResolveNotFound:
		return "not-found"
	}
	return "unknown"
}

// FailOutcome is the result of Fail.
type FailOutcome int

const (
	FailRecorded FailOutcome = iota + 1
	FailAlreadyResolved
	FailNotFound
)

func (o FailOutcome) String() string {
	switch o {
	case FailRecorded:
		return "failed"
	case FailAlreadyResolved:
		return "already-resolved"
	case FailNotFound:
		return "not-found"
	}
	return "unknown"
}
