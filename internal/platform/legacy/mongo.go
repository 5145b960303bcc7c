package legacy

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names in the legacy database.
const (
	CollDepartment   = "department"
	CollAdmin        = "admin"
	CollDoctor       = "doctor"
	CollPatient      = "patient"
	CollVisit        = "visit"
	CollPrescription = "prescription"
	CollAudit        = "prescription_audit"
)

// Connect opens and pings the legacy MongoDB.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to legacy mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping legacy mongo: %w", err)
	}
	return client, nil
}

// Load reads every legacy collection. A missing collection reads as empty.
func Load(ctx context.Context, db *mongo.Database) (*Snapshot, error) {
	s := &Snapshot{}
	var err error
	if s.Departments, err = readAll[Department](ctx, db, CollDepartment); err != nil {
		return nil, err
	}
	if s.Admins, err = readAll[Admin](ctx, db, CollAdmin); err != nil {
		return nil, err
	}
	if s.Doctors, err = readAll[Doctor](ctx, db, CollDoctor); err != nil {
		return nil, err
	}
	if s.Patients, err = readAll[Patient](ctx, db, CollPatient); err != nil {
		return nil, err
	}
	if s.Visits, err = readAll[Visit](ctx, db, CollVisit); err != nil {
		return nil, err
	}
	if s.Prescriptions, err = readAll[Prescription](ctx, db, CollPrescription); err != nil {
		return nil, err
	}
	if s.Audit, err = readAll[AuditRecord](ctx, db, CollAudit); err != nil {
		return nil, err
	}
	return s, nil
}

func readAll[T any](ctx context.Context, db *mongo.Database, name string) ([]T, error) {
	cur, err := db.Collection(name).Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("read legacy %s: %w", name, err)
	}
	var out []T
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode legacy %s: %w", name, err)
	}
	return out, nil
}
