package dues

import (
	"fmt"

	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits stored for every amount
const AmountScale = 4

// CheckAmountScale rejects amounts that cannot be stored without rounding
func CheckAmountScale(field string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return shared.NewDomainError(CodeInvalidAmount,
			fmt.Sprintf("%s %s has more than %d decimal places", field, amount, AmountScale))
	}
	return nil
}
