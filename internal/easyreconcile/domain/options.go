package domain

import (
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DateBase 对账分录日期的取值依据
type DateBase string

const (
	DateBaseEndPeriodLastCredit DateBase = "end_period_last_credit"
	DateBaseNewest              DateBase = "newest"
	DateBaseActual              DateBase = "actual"
	DateBaseEndPeriod           DateBase = "end_period"
	DateBaseNewestCredit        DateBase = "newest_credit"
	DateBaseNewestDebit         DateBase = "newest_debit"
)

// DefaultDateBase 默认取最近一笔贷方所在期间的期末
const DefaultDateBase = DateBaseEndPeriodLastCredit

// FilterMaxLen 过滤表达式最大长度
const FilterMaxLen = 128

// Choice 可选项
type Choice struct {
	Value string
	Label string
}

var dateBaseChoices = []Choice{
	{Value: string(DateBaseEndPeriodLastCredit), Label: "End of period of most recent credit"},
	{Value: string(DateBaseNewest), Label: "Most recent move line"},
	{Value: string(DateBaseActual), Label: "Today"},
	{Value: string(DateBaseEndPeriod), Label: "End of period of most recent move line"},
	{Value: string(DateBaseNewestCredit), Label: "Date of most recent credit"},
	{Value: string(DateBaseNewestDebit), Label: "Date of most recent debit"},
}

// DateBaseChoices 返回全部日期依据
func DateBaseChoices() []Choice {
	out := make([]Choice, len(dateBaseChoices))
	copy(out, dateBaseChoices)
	return out
}

// Valid 是否为已定义的日期依据
func (d DateBase) Valid() bool {
	for _, c := range dateBaseChoices {
		if c.Value == string(d) {
			return true
		}
	}
	return false
}

// ReconcileOptions 对账方法与对账参数共用的选项
type ReconcileOptions struct {
	// 允许的核销差额
	WriteOff        decimal.Decimal `gorm:"column:write_off;type:decimal(20,8);not null"`
	AccountLostID   *uint64         `gorm:"column:account_lost_id"`
	AccountProfitID *uint64         `gorm:"column:account_profit_id"`
	JournalID       *uint64         `gorm:"column:journal_id"`
	DateBaseOn      DateBase        `gorm:"column:date_base_on;type:varchar(32);not null"`
	Filter          string          `gorm:"column:filter;type:varchar(128)"`
}

// DefaultOptions 返回默认选项
func DefaultOptions() ReconcileOptions {
	return ReconcileOptions{
		WriteOff:   decimal.Zero,
		DateBaseOn: DefaultDateBase,
	}
}

// Validate 校验选项
func (o ReconcileOptions) Validate() error {
	if !o.DateBaseOn.Valid() {
		return fmt.Errorf("%w: unknown date_base_on %q", ErrInvalidArgument, o.DateBaseOn)
	}
	if o.WriteOff.IsNegative() {
		return fmt.Errorf("%w: write_off must not be negative", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(o.Filter) > FilterMaxLen {
		return fmt.Errorf("%w: filter longer than %d characters", ErrInvalidArgument, FilterMaxLen)
	}
	return nil
}
