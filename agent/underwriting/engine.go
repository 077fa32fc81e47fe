// Package underwriting holds the eligibility decision engine. It is the
// only place business risk rules live: a pure function over the requested
// amount, credit score, pre-approved limit, and monthly salary, with no
// network, store, or oracle dependency.
package underwriting

import (
	"errors"
	"fmt"
)

// Status is the underwriting lifecycle value carried on the session.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusNeedSalary Status = "NEED_SALARY"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusNeedSalary, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s may only change via re-entry on a brand-new
// requested amount.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

const (
	// MinCreditScore is the hard floor below which every application is
	// rejected regardless of amount or salary.
	MinCreditScore = 700

	// BaseRate applies to amounts within the pre-approved limit;
	// ElevatedRate to salary-backed approvals above it.
	BaseRate     = 10.5
	ElevatedRate = 12.0

	// The EMI estimate is a flat approximation: a 24-month tenor with a 10%
	// loading factor, estimatedEMI = (amount/24)*1.1. It is deliberately not
	// an amortization formula; the NEED_SALARY threshold depends on it, so
	// changing it changes who gets approved.
	emiTenorMonths = 24
	emiLoadFactor  = 1.1

	// An EMI above half the monthly salary fails the affordability check.
	emiSalaryShare = 0.5
)

var (
	ErrInvalidAmount = errors.New("underwriting: amount must be positive")
	ErrInvalidSalary = errors.New("underwriting: salary must be non-negative")
)

// Outcome is the result of one evaluation. EstimatedEMI and MaxSupportable
// are populated only on the salary-backed path so a worker can suggest an
// alternative amount after a rejection.
type Outcome struct {
	Status         Status
	InterestRate   float64
	Reason         string
	EstimatedEMI   float64
	MaxSupportable int64
}

// Evaluate runs the four gates strictly in order; the first match wins.
// Amounts and salary are in the smallest currency unit. A monthlySalary of
// zero means "not provided"; a negative value is a precondition violation,
// as is a non-positive amount.
func Evaluate(amount int64, creditScore int, preApprovedLimit int64, monthlySalary int64) (Outcome, error) {
	if amount <= 0 {
		return Outcome{}, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	if monthlySalary < 0 {
		return Outcome{}, fmt.Errorf("%w: got %d", ErrInvalidSalary, monthlySalary)
	}

	// Gate 1: credit score floor.
	if creditScore < MinCreditScore {
		return Outcome{
			Status: StatusRejected,
			Reason: fmt.Sprintf("credit score %d is below the minimum threshold of %d", creditScore, MinCreditScore),
		}, nil
	}

	// Gate 2: instant approval within the pre-approved limit (inclusive).
	if amount <= preApprovedLimit {
		return Outcome{
			Status:       StatusApproved,
			InterestRate: BaseRate,
			Reason:       "within pre-approved limit",
		}, nil
	}

	// Gate 3: up to twice the limit (inclusive), salary-backed.
	if amount <= 2*preApprovedLimit {
		if monthlySalary == 0 {
			return Outcome{
				Status: StatusNeedSalary,
				Reason: "amount exceeds the pre-approved limit; monthly salary is required to proceed",
			}, nil
		}

		emi := estimateEMI(amount)
		cap := emiSalaryShare * float64(monthlySalary)
		if emi <= cap {
			return Outcome{
				Status:       StatusApproved,
				InterestRate: ElevatedRate,
				Reason:       "salary supports the EMI",
				EstimatedEMI: emi,
			}, nil
		}

		max := maxSupportableAmount(monthlySalary)
		return Outcome{
			Status: StatusRejected,
			Reason: fmt.Sprintf(
				"estimated EMI %.2f exceeds half of monthly salary %d; the salary supports loans up to %d",
				emi, monthlySalary, max),
			EstimatedEMI:   emi,
			MaxSupportable: max,
		}, nil
	}

	// Gate 4: beyond twice the limit.
	return Outcome{
		Status: StatusRejected,
		Reason: fmt.Sprintf("requested amount %d exceeds twice the pre-approved limit (%d)", amount, 2*preApprovedLimit),
	}, nil
}

func estimateEMI(amount int64) float64 {
	return float64(amount) / emiTenorMonths * emiLoadFactor
}

// maxSupportableAmount inverts the EMI estimate at the affordability cap:
// 0.5*salary*24/1.1.
func maxSupportableAmount(monthlySalary int64) int64 {
	return int64(emiSalaryShare * float64(monthlySalary) * emiTenorMonths / emiLoadFactor)
}
