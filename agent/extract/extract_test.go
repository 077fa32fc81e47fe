package extract

import "testing"

func TestLoanAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want int64
		ok   bool
	}{
		{"I need a loan of 5 lakh", 500000, true},
		{"around 2.5 lakhs please", 250000, true},
		{"maybe 3 lac", 300000, true},
		{"give me 50 thousand", 50000, true},
		{"looking at 250k", 250000, true},
		{"₹2,00,000 would do", 200000, true},
		{"Rs. 150000", 150000, true},
		{"rs 75,000", 75000, true},
		{"I want 250000 for a car", 250000, true},
		{"hello there", 0, false},
		{"a 12 month loan", 0, false},
		// Earnings phrasing is not a loan amount.
		{"my salary is 25000 per month", 0, false},
		{"I earn 45000", 0, false},
		{"my income is 30000 but the loan should be 5 lakhs", 500000, true},
	}

	for _, tt := range tests {
		got, ok := LoanAmount(tt.text)
		if ok != tt.ok || got != tt.want {
			t.Errorf("LoanAmount(%q) = (%d, %v), want (%d, %v)", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMonthlySalary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want int64
		ok   bool
	}{
		{"my salary is 25 thousand", 25000, true},
		{"my salary is 25000 per month", 25000, true},
		{"I earn ₹70,000 a month", 70000, true},
		{"salary 45000", 45000, true},
		{"I make 9000 a month", 0, false},     // below sanity floor for bare runs
		{"account number 1234567", 0, false},  // seven digits, outside salary shape
		{"no numbers here", 0, false},
	}

	for _, tt := range tests {
		got, ok := MonthlySalary(tt.text)
		if ok != tt.ok || got != tt.want {
			t.Errorf("MonthlySalary(%q) = (%d, %v), want (%d, %v)", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAmountAndSalaryCues(t *testing.T) {
	t.Parallel()

	if !HasAmountCue("raise the loan to 300000") {
		t.Error(`expected an amount cue in "raise the loan to 300000"`)
	}
	if HasAmountCue("here is 250000") {
		t.Error("a bare digit run must not count as an amount cue")
	}
	if !HasSalaryCue("I make 40000 a month") {
		t.Error(`expected a salary cue in "I make 40000 a month"`)
	}
	if HasSalaryCue("I want 250000") {
		t.Error("a plain request must not count as a salary cue")
	}
}

func TestPAN(t *testing.T) {
	t.Parallel()

	if pan, ok := PAN("my pan is abcde1234f"); !ok || pan != "ABCDE1234F" {
		t.Fatalf("PAN lowercase = (%q, %v)", pan, ok)
	}
	if pan, ok := PAN("PAN: AXYPL9876K, thanks"); !ok || pan != "AXYPL9876K" {
		t.Fatalf("PAN embedded = (%q, %v)", pan, ok)
	}
	if _, ok := PAN("ABCD1234F"); ok {
		t.Fatal("nine characters must not match")
	}
	if _, ok := PAN("nothing useful"); ok {
		t.Fatal("no match expected")
	}
}

func TestValidPAN(t *testing.T) {
	t.Parallel()

	if !ValidPAN("abcde1234f") {
		t.Fatal("case-insensitive valid PAN rejected")
	}
	if ValidPAN("ABCDE12345") || ValidPAN("") || ValidPAN("ABCDE1234FX") {
		t.Fatal("malformed PAN accepted")
	}
}

func TestTenure(t *testing.T) {
	t.Parallel()

	if got, ok := Tenure("24 months works for me"); !ok || got != "24 months" {
		t.Fatalf("Tenure = (%q, %v)", got, ok)
	}
	if got, ok := Tenure("1 month"); !ok || got != "1 months" {
		t.Fatalf("Tenure singular = (%q, %v)", got, ok)
	}
	if _, ok := Tenure("no duration"); ok {
		t.Fatal("no match expected")
	}
}
