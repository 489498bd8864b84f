package reconcile

import (
	"sobres/internal/core"
	"sobres/internal/sanitize"
	"sobres/internal/validate"
)

// TransferInput is the raw create-transfer form.
type TransferInput struct {
	Source      int64  `validate:"gt=0"`
	Destination int64  `validate:"gt=0,nefield=Source"`
	Amount      string `validate:"notblank"`
	Date        string `validate:"required,isodate"`
	Memo        string `validate:"max=500"`
	Category    int64  `validate:"gte=0"`
}

// ParseTransfer validates in and converts it to a TransferRequest.
func ParseTransfer(in TransferInput, loc core.Locale) (TransferRequest, error) {
	if err := validate.Struct(in); err != nil {
		return TransferRequest{}, err
	}
	amount, err := core.ParseAmount(in.Amount, loc)
	if err != nil || amount.IsZero() {
		return TransferRequest{}, core.Invalid("amount", "is not a valid amount")
	}
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return TransferRequest{}, core.Invalid("date", "must be a date (YYYY-MM-DD)")
	}
	return TransferRequest{
		SourceAccountID:      in.Source,
		DestinationAccountID: in.Destination,
		Amount:               amount.Abs(),
		Date:                 date,
		Memo:                 sanitize.Text(in.Memo),
		CategoryID:           in.Category,
	}, nil
}

// LinkInput is the raw link-transfer form.
type LinkInput struct {
	First  int64 `validate:"gt=0"`
	Second int64 `validate:"gt=0,nefield=First"`
}

func (in LinkInput) Validate() error {
	return validate.Struct(in)
}
