package core

// errors.go collects the core package's typed-error constructors, built on
// top of the shared pkg/utils.TypedError taxonomy (spec §7).

import (
	"fmt"

	"github.com/HamiGames/Lucid-sub001/pkg/utils"
)

func integrityErrorf(format string, args ...interface{}) error {
	return utils.NewError(utils.KindIntegrity, fmt.Sprintf(format, args...))
}

func validationErrorf(field, format string, args ...interface{}) error {
	return utils.NewFieldError(utils.KindValidation, fmt.Sprintf(format, args...), field)
}

func duplicateTxErrorf(format string, args ...interface{}) error {
	return utils.NewError(utils.KindDuplicateTx, fmt.Sprintf(format, args...))
}

func insufficientBalanceErrorf(format string, args ...interface{}) error {
	return utils.NewError(utils.KindInsufficientBal, fmt.Sprintf(format, args...))
}

func gasLimitExceededErrorf(format string, args ...interface{}) error {
	return utils.NewError(utils.KindGasLimitExceeded, fmt.Sprintf(format, args...))
}

func chainUnavailableErrorf(cause error, format string, args ...interface{}) error {
	return utils.WrapAs(utils.KindChainUnavailable, fmt.Sprintf(format, args...), cause)
}

func pipelineCanceledErrorf(format string, args ...interface{}) error {
	return utils.NewError(utils.KindPipelineCanceled, fmt.Sprintf(format, args...))
}
