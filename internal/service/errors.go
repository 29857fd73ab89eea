package service

import "errors"

// ErrGenerationNotRetryable marks a PDF generation outcome that no
// retry can fix, such as a permanently invalid template payload.
// Callers must not requeue the receipt when they see it.
var ErrGenerationNotRetryable = errors.New("receipt generation cannot be retried")
