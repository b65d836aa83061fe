package gtfs

// ExceptionType describes a calendar_dates.txt exception.
//
// This is a Go representation of the enum described in the
// `exception_type` field of `calendar_dates.txt`.
type ExceptionType int32

const (
	ExceptionType_Added   ExceptionType = 1
	ExceptionType_Removed ExceptionType = 2
)

func (t ExceptionType) String() string {
	switch t {
	case ExceptionType_Added:
		return "ADDED"
	case ExceptionType_Removed:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// PaymentMethod describes when a fare must be paid.
//
// This is a Go representation of the enum described in the
// `payment_method` field of `fare_attributes.txt`.
type PaymentMethod int32

const (
	PaymentMethod_OnBoard        PaymentMethod = 0
	PaymentMethod_BeforeBoarding PaymentMethod = 1
)

func parsePaymentMethod(s string) PaymentMethod {
	switch s {
	case "1":
		return PaymentMethod_BeforeBoarding
	default:
		return PaymentMethod_OnBoard
	}
}

func (t PaymentMethod) String() string {
	switch t {
	case PaymentMethod_OnBoard:
		return "ON_BOARD"
	case PaymentMethod_BeforeBoarding:
		return "BEFORE_BOARDING"
	default:
		return "UNKNOWN"
	}
}

// TransferType describes the type of a transfer.
//
// This is a Go representation of the enum described in the
// `transfer_type` field of `transfers.txt`.
type TransferType int32

const (
	TransferType_Recommended  TransferType = 0
	TransferType_Timed        TransferType = 1
	TransferType_RequiresTime TransferType = 2
	TransferType_NotPossible  TransferType = 3
)

func parseTransferType(s string) TransferType {
	switch s {
	case "1":
		return TransferType_Timed
	case "2":
		return TransferType_RequiresTime
	case "3":
		return TransferType_NotPossible
	default:
		return TransferType_Recommended
	}
}

func (t TransferType) String() string {
	switch t {
	case TransferType_Recommended:
		return "RECOMMENDED"
	case TransferType_Timed:
		return "TIMED"
	case TransferType_RequiresTime:
		return "REQUIRES_TIME"
	case TransferType_NotPossible:
		return "NOT_POSSIBLE"
	default:
		return "UNKNOWN"
	}
}

// ExactTimes describes the type of service for a trip.
//
// This is a Go representation of the enum described in the `exact_times`
// field of `frequencies.txt`. An empty cell means frequency based.
type ExactTimes int32

const (
	FrequencyBased ExactTimes = 0
	ScheduleBased  ExactTimes = 1
)

func parseExactTimes(s string) ExactTimes {
	switch s {
	case "1":
		return ScheduleBased
	default:
		return FrequencyBased
	}
}

func (t ExactTimes) String() string {
	switch t {
	case ScheduleBased:
		return "SCHEDULE_BASED"
	default:
		return "FREQUENCY_BASED"
	}
}
