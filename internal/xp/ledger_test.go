package xp

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"studysphere/internal/database/dbtest"
)

func TestMain(m *testing.M) {
	dbtest.Main(m)
}

func TestCreditTx_OncePerRef(t *testing.T) {
	db := dbtest.New(t)
	user := dbtest.CreateUser(t, db, "7a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d", "ada")
	ctx := context.Background()

	credit := func(reason Reason, ref string) (*Award, error) {
		var award *Award
		err := db.WithTx(ctx, func(tx *sql.Tx) error {
			var err error
			award, err = CreditTx(ctx, tx, user, reason, ref)
			return err
		})
		return award, err
	}

	if _, err := credit(ReasonJoinGroup, "group:1"); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	if _, err := credit(ReasonJoinGroup, "group:1"); !errors.Is(err, ErrAlreadyCredited) {
		t.Fatalf("expected ErrAlreadyCredited, got %v", err)
	}
	if _, err := credit(ReasonJoinGroup, "group:2"); err != nil {
		t.Fatalf("other group: %v", err)
	}
	if _, err := credit(Reason("bogus"), "x"); !errors.Is(err, ErrUnknownReason) {
		t.Errorf("expected ErrUnknownReason, got %v", err)
	}

	if total, _ := dbtest.UserXP(t, db, user); total != 2*RewardFor(ReasonJoinGroup) {
		t.Errorf("xp = %d, the rejected credit must roll back", total)
	}
}
