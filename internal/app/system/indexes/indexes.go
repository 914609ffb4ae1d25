// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensurePrecincts(ctx, db); err != nil {
		problems = append(problems, "precincts: "+err.Error())
	}
	if err := ensureGroups(ctx, db); err != nil {
		problems = append(problems, "groups: "+err.Error())
	}
	if err := ensureMemberships(ctx, db); err != nil {
		problems = append(problems, "memberships: "+err.Error())
	}
	if err := ensureEndorsements(ctx, db); err != nil {
		problems = append(problems, "endorsements: "+err.Error())
	}
	if err := ensureQuotas(ctx, db); err != nil {
		problems = append(problems, "endorsement_quotas: "+err.Error())
	}
	if err := ensureAuditEvents(ctx, db); err != nil {
		problems = append(problems, "audit_events: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var name string
		if m.Options != nil && m.Options.Name != nil {
			name = *m.Options.Name
		}
		start := time.Now()

		// CreateOne is idempotent when an identical index already
		// exists; conflicts (same keys, different options) surface as
		// errors we report instead of papering over.
		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", name),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Phone number is the login identifier; globally unique.
		{
			Keys:    bson.D{{Key: "phone_number", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_phone"),
		},
		// Role-scoped listings (eligible applicants, geder rosters).
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "precinct_id", Value: 1}},
			Options: options.Index().SetName("idx_users_role_precinct"),
		},
	})
}

func ensurePrecincts(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("precincts")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Official election-commission code, unique per precinct.
		{
			Keys:    bson.D{{Key: "cec_code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_precincts_cec"),
		},
	})
}

func ensureGroups(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("groups")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Precinct listings with the open/full split.
		{
			Keys:    bson.D{{Key: "precinct_id", Value: 1}, {Key: "is_full", Value: 1}},
			Options: options.Index().SetName("idx_groups_precinct_full"),
		},
	})
}

func ensureMemberships(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("memberships")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One membership row per user, for their whole lifetime.
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_memberships_user"),
		},
		// Active member counts per group.
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "is_active", Value: 1}},
			Options: options.Index().SetName("idx_memberships_group_active"),
		},
	})
}

func ensureEndorsements(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("endorsements")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// At most one ACTIVE endorsement per supporter; terminal records
		// are exempt so the audit trail can accumulate.
		{
			Keys: bson.D{{Key: "supporter_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "active"}).
				SetName("uniq_endorsements_supporter_active"),
		},
		// Guarantor's endorsement list, segmented by status.
		{
			Keys:    bson.D{{Key: "guarantor_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_endorsements_guarantor_status"),
		},
		// Supporter-side history lookups.
		{
			Keys:    bson.D{{Key: "supporter_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_endorsements_supporter_created"),
		},
	})
}

func ensureQuotas(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("endorsement_quotas")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One ledger row per geder.
		{
			Keys:    bson.D{{Key: "geder_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_quotas_geder"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("audit_events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_user_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "event_type", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_category_type_timestamp"),
		},
	})
}
