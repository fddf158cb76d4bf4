package models

import (
	"testing"
)

func pendingQuotation(id int, requester, name string, quantity int64) *Quotation {
	return &Quotation{
		ID:          id,
		Requester:   requester,
		ProductName: name,
		Quantity:    quantity,
		Status:      QuotationStatusPending,
	}
}

func TestValidateApprovalBatch_SingleQuotation(t *testing.T) {
	batch := []*Quotation{pendingQuotation(1, "consumer-a", "Beans", 5)}

	name, sum, err := validateApprovalBatch(batch, 5)
	if err != nil {
		t.Fatalf("expected batch to validate, got %v", err)
	}
	if name != "Beans" {
		t.Fatalf("expected shared name Beans, got %q", name)
	}
	if sum != 5 {
		t.Fatalf("expected sum 5, got %d", sum)
	}
}

func TestValidateApprovalBatch_TotalMayExceedSum(t *testing.T) {
	batch := []*Quotation{
		pendingQuotation(1, "consumer-a", "Beans", 5),
		pendingQuotation(2, "consumer-b", "Beans", 3),
	}

	// The producer may mint a larger lot; the excess becomes surplus.
	name, sum, err := validateApprovalBatch(batch, 20)
	if err != nil {
		t.Fatalf("expected batch to validate, got %v", err)
	}
	if name != "Beans" || sum != 8 {
		t.Fatalf("unexpected result: name=%q sum=%d", name, sum)
	}
}

func TestValidateApprovalBatch_TotalBelowSum(t *testing.T) {
	batch := []*Quotation{
		pendingQuotation(1, "consumer-a", "Beans", 5),
		pendingQuotation(2, "consumer-b", "Beans", 3),
	}

	_, _, err := validateApprovalBatch(batch, 7)
	if err == nil {
		t.Fatal("expected error when total is below the requested sum")
	}
	if KindOf(err) != ErrorKindConsistency {
		t.Fatalf("expected consistency error kind, got %q", KindOf(err))
	}
}

func TestValidateApprovalBatch_MixedProductNames(t *testing.T) {
	batch := []*Quotation{
		pendingQuotation(1, "consumer-a", "Beans", 5),
		pendingQuotation(2, "consumer-b", "Rice", 3),
	}

	_, _, err := validateApprovalBatch(batch, 100)
	if err == nil {
		t.Fatal("expected error for mixed product names")
	}
	if KindOf(err) != ErrorKindConsistency {
		t.Fatalf("expected consistency error kind, got %q", KindOf(err))
	}
}

func TestValidateApprovalBatch_NonPendingQuotation(t *testing.T) {
	rejected := pendingQuotation(2, "consumer-b", "Beans", 3)
	rejected.Status = QuotationStatusRejected
	batch := []*Quotation{
		pendingQuotation(1, "consumer-a", "Beans", 5),
		rejected,
	}

	_, _, err := validateApprovalBatch(batch, 100)
	if err == nil {
		t.Fatal("expected error for non-pending quotation in batch")
	}
	if KindOf(err) != ErrorKindState {
		t.Fatalf("expected state error kind, got %q", KindOf(err))
	}
}

func TestLedgerErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{NewUnauthenticatedError("x"), ErrorKindUnauthenticated},
		{NewAuthorizationError("x"), ErrorKindAuthorization},
		{NewValidationError("x"), ErrorKindValidation},
		{NewStateError("x"), ErrorKindState},
		{NewConsistencyError("x"), ErrorKindConsistency},
		{NewNotFoundError("x"), ErrorKindNotFound},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.kind {
			t.Fatalf("expected kind %q, got %q", tc.kind, got)
		}
	}
}

func TestEnumParse(t *testing.T) {
	var role LedgerRole
	if err := role.Parse("Producer"); err != nil {
		t.Fatalf("expected Producer to parse, got %v", err)
	}
	if role != LedgerRoleProducer {
		t.Fatalf("expected %q, got %q", LedgerRoleProducer, role)
	}
	if err := role.Parse("warehouse"); err == nil {
		t.Fatal("expected error for unknown role")
	}

	var status ProductStatus
	if err := status.Parse(string(ProductStatusAvailableForSale)); err != nil {
		t.Fatalf("expected status to parse, got %v", err)
	}
	if err := status.Parse("Teleported"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
