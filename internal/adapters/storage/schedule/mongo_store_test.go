package schedule

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "mccenter/internal/domain/schedule"
)

// openMongo connects to MCCENTER_TEST_MONGO_URI and returns a throwaway database.
func openMongo(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MCCENTER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("MCCENTER_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	db := client.Database("mccenter_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

func TestMongoStore_RoundTripAndQueries(t *testing.T) {
	store := NewMongoStore(openMongo(t))
	ctx := context.Background()
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}

	crossMonth := newSchedule(t, "s-jan", "MC Kids K10", "2024-01-28", "2024-03-31", 8)
	april := newSchedule(t, "s-apr", "MC Teens T2", "2024-04-01", "2024-05-31", 4)
	for _, cs := range []domain.ClassSchedule{crossMonth, april} {
		if err := store.Save(ctx, cs); err != nil {
			t.Fatalf("Save %s: %v", cs.ID, err)
		}
	}

	got, err := store.GetByID(ctx, "s-jan")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Version != 1 || len(got.Sessions) != 8 {
		t.Errorf("version=%d sessions=%d", got.Version, len(got.Sessions))
	}

	feb, err := store.ListActiveInRange(ctx, "2024-02-01", "2024-02-29")
	if err != nil {
		t.Fatalf("ListActiveInRange: %v", err)
	}
	if ids := idsOf(feb); !equal(ids, []string{"s-jan"}) {
		t.Errorf("february ids = %v", ids)
	}

	onDate, err := store.ListActiveOnDate(ctx, "2024-04-01")
	if err != nil {
		t.Fatalf("ListActiveOnDate: %v", err)
	}
	if ids := idsOf(onDate); !equal(ids, []string{"s-apr"}) {
		t.Errorf("2024-04-01 ids = %v", ids)
	}

	stale := got
	got.MaxStudents = 3
	if err := store.Save(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Save(ctx, stale); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("stale update err = %v, want ErrVersionConflict", err)
	}

	if err := store.SoftDelete(ctx, "s-jan"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	list, _ := store.List(ctx)
	if ids := idsOf(list); !equal(ids, []string{"s-apr"}) {
		t.Errorf("List after delete = %v", ids)
	}
}
