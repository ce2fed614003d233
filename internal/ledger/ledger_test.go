package ledger

import (
	"database/sql"
	"errors"
	"log/slog"
	"testing"

	"github.com/askelund/dagsplan/internal/database"
	"github.com/askelund/dagsplan/internal/model"
	"github.com/askelund/dagsplan/internal/store"
)

type fakeNotifier struct {
	sent []string
	fail error
}

func (n *fakeNotifier) SendRedemptionNotice(toEmail, childName, rewardTitle string, pointsSpent, pointsLeft int) error {
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, rewardTitle)
	return nil
}

type fixture struct {
	db       *sql.DB
	svc      *Service
	notifier *fakeNotifier
	children *store.ChildStore
	childID  int64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	parent, err := store.NewUserStore(db).Create("mor@example.com", "Mor")
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	children := store.NewChildStore(db)
	child, err := children.Create(parent.ID, "Emma", "unicorn", "4821")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	notifier := &fakeNotifier{}
	return &fixture{
		db:       db,
		svc:      New(db, notifier, slog.Default()),
		notifier: notifier,
		children: children,
		childID:  child.ID,
	}
}

func (f *fixture) createActivity(t *testing.T, activityType string, points int) *model.Activity {
	t.Helper()
	a, err := store.NewActivityStore(f.db).Create(model.Activity{
		ChildID:         f.childID,
		Title:           "Rydde op",
		Icon:            "home",
		Color:           "green",
		Time:            "16:00",
		DurationMinutes: 15,
		Date:            "2024-01-10",
		ActivityType:    activityType,
		Points:          points,
	})
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}
	return a
}

func (f *fixture) createReward(t *testing.T, pointsRequired int) *model.Reward {
	t.Helper()
	r, err := store.NewRewardStore(f.db).Create(f.childID, "Biograftur", "", "star", pointsRequired, "", "")
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	return r
}

func (f *fixture) setPoints(t *testing.T, points int) {
	t.Helper()
	if _, err := f.db.Exec(`UPDATE children SET total_points = ? WHERE id = ?`, points, f.childID); err != nil {
		t.Fatalf("set points: %v", err)
	}
}

func (f *fixture) points(t *testing.T) int {
	t.Helper()
	child, err := f.children.GetByID(f.childID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	return child.TotalPoints
}

func TestCompleteBonusCreditsPoints(t *testing.T) {
	f := setup(t)
	a := f.createActivity(t, model.ActivityTypeBonus, 3)

	got, err := f.svc.CompleteActivity(a.ID, f.childID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !got.Activity.Completed {
		t.Error("activity not marked completed")
	}
	if got.PointsEarned != 3 || got.PointsTotalNow != 3 {
		t.Errorf("earned/total = %d/%d, want 3/3", got.PointsEarned, got.PointsTotalNow)
	}
	if f.points(t) != 3 {
		t.Errorf("balance = %d, want 3", f.points(t))
	}
}

func TestCompleteImportantCreditsNothing(t *testing.T) {
	f := setup(t)
	a := f.createActivity(t, model.ActivityTypeImportant, 0)

	got, err := f.svc.CompleteActivity(a.ID, f.childID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.PointsEarned != 0 || f.points(t) != 0 {
		t.Errorf("earned = %d, balance = %d, want 0/0", got.PointsEarned, f.points(t))
	}
}

func TestCompleteTwiceDoesNotDoubleCredit(t *testing.T) {
	f := setup(t)
	a := f.createActivity(t, model.ActivityTypeBonus, 3)

	if _, err := f.svc.CompleteActivity(a.ID, f.childID); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if _, err := f.svc.CompleteActivity(a.ID, f.childID); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("second complete err = %v, want ErrAlreadyCompleted", err)
	}
	if f.points(t) != 3 {
		t.Errorf("balance = %d, want 3 (no double credit)", f.points(t))
	}
}

func TestCompleteWrongChildRejected(t *testing.T) {
	f := setup(t)
	a := f.createActivity(t, model.ActivityTypeBonus, 3)

	if _, err := f.svc.CompleteActivity(a.ID, f.childID+99); !errors.Is(err, ErrNotAssigned) {
		t.Errorf("err = %v, want ErrNotAssigned", err)
	}
	if f.points(t) != 0 {
		t.Errorf("balance = %d, want 0", f.points(t))
	}
}

func TestCompleteMissingActivity(t *testing.T) {
	f := setup(t)
	if _, err := f.svc.CompleteActivity(12345, f.childID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRedeemSuccess(t *testing.T) {
	f := setup(t)
	f.setPoints(t, 12)
	r := f.createReward(t, 10)

	got, err := f.svc.RedeemReward(r.ID, f.childID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if !got.Reward.Claimed {
		t.Error("reward not claimed")
	}
	if !got.Reward.IsActive {
		t.Error("reward should stay active until the parent marks it given")
	}
	if got.PointsSpent != 10 || got.PointsTotalNow != 2 {
		t.Errorf("spent/total = %d/%d, want 10/2", got.PointsSpent, got.PointsTotalNow)
	}
	if f.points(t) != 2 {
		t.Errorf("balance = %d, want 2", f.points(t))
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != "Biograftur" {
		t.Errorf("notifier.sent = %v", f.notifier.sent)
	}
}

func TestRedeemInsufficientPoints(t *testing.T) {
	f := setup(t)
	f.setPoints(t, 9)
	r := f.createReward(t, 10)

	if _, err := f.svc.RedeemReward(r.ID, f.childID); !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("err = %v, want ErrInsufficientPoints", err)
	}
	if f.points(t) != 9 {
		t.Errorf("balance = %d, want 9 (no state change)", f.points(t))
	}

	reward, _ := store.NewRewardStore(f.db).GetByID(r.ID)
	if reward.Claimed {
		t.Error("reward must not be claimed on rejected redemption")
	}
}

func TestRedeemTwiceRejected(t *testing.T) {
	f := setup(t)
	f.setPoints(t, 20)
	r := f.createReward(t, 10)

	if _, err := f.svc.RedeemReward(r.ID, f.childID); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if _, err := f.svc.RedeemReward(r.ID, f.childID); !errors.Is(err, ErrNotClaimable) {
		t.Fatalf("second redeem err = %v, want ErrNotClaimable", err)
	}
	if f.points(t) != 10 {
		t.Errorf("balance = %d, want 10", f.points(t))
	}
}

func TestRedeemInactiveReward(t *testing.T) {
	f := setup(t)
	f.setPoints(t, 20)
	r := f.createReward(t, 10)
	if _, err := store.NewRewardStore(f.db).MarkGiven(r.ID); err != nil {
		t.Fatalf("mark given: %v", err)
	}

	if _, err := f.svc.RedeemReward(r.ID, f.childID); !errors.Is(err, ErrNotClaimable) {
		t.Errorf("err = %v, want ErrNotClaimable", err)
	}
}

func TestRedeemNotifierFailureIsSwallowed(t *testing.T) {
	f := setup(t)
	f.setPoints(t, 12)
	f.notifier.fail = errors.New("smtp down")
	r := f.createReward(t, 10)

	got, err := f.svc.RedeemReward(r.ID, f.childID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if got.PointsTotalNow != 2 {
		t.Errorf("total = %d, want 2: redemption must complete despite notice failure", got.PointsTotalNow)
	}
}
