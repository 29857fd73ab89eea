package repository

import "errors"

var ErrReceiptNotFound = errors.New("receipt not found")
var ErrCartNotFound = errors.New("cart not found")
var ErrBizEventNotFound = errors.New("biz event not found")
var ErrReceiptErrorNotFound = errors.New("receipt error not found")
