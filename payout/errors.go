package payout

// errors.go collects the payout package's typed-error constructors, built
// on the same shared pkg/utils.TypedError taxonomy core uses (spec §7) —
// the only dependency payout shares with core is this leaf error package,
// never core itself (spec §4.10 isolation boundary).

import (
	"fmt"

	"github.com/HamiGames/Lucid-sub001/pkg/utils"
)

func kycRejectedErrorf(format string, args ...interface{}) error {
	return utils.NewError(utils.KindKycRejected, fmt.Sprintf(format, args...))
}

func insufficientEnergyErrorf(format string, args ...interface{}) error {
	return utils.NewError(utils.KindInsufficientEnergy, fmt.Sprintf(format, args...))
}

func validationErrorf(field, format string, args ...interface{}) error {
	return utils.NewFieldError(utils.KindValidation, fmt.Sprintf(format, args...), field)
}

func tronUnavailableErrorf(cause error, format string, args ...interface{}) error {
	return utils.WrapAs(utils.KindChainUnavailable, fmt.Sprintf(format, args...), cause)
}
