package target

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/BartekS5/tablesync/internal/staging"
	"github.com/BartekS5/tablesync/pkg/logger"
	"github.com/BartekS5/tablesync/pkg/utils"
)

const writeBatchSize = 500

// MongoTarget loads staged rows into MongoDB collections. "Table" maps
// to collection; schema only drives value restoration, Mongo needs no
// column DDL.
type MongoTarget struct {
	Client   *mongo.Client
	Database string
}

func NewMongoTarget(client *mongo.Client, database string) *MongoTarget {
	return &MongoTarget{Client: client, Database: database}
}

func (m *MongoTarget) db() *mongo.Database {
	return m.Client.Database(m.Database)
}

func (m *MongoTarget) TableExists(name string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	names, err := m.db().ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	return len(names) > 0, nil
}

func (m *MongoTarget) CreateTable(name string, schema map[string]string) error {
	exists, err := m.TableExists(name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.db().CreateCollection(ctx, name); err != nil {
		// Racing creators are fine, the collection is there either way.
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Name == "NamespaceExists" {
			return nil
		}
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

func (m *MongoTarget) UpsertFromFile(name, key, path string, schema map[string]string) (int, error) {
	coll := m.db().Collection(name)
	total := 0

	err := m.eachBatch(path, schema, func(rows []map[string]interface{}) error {
		writes := make([]mongo.WriteModel, 0, len(rows))
		for _, row := range rows {
			idVal, ok := row[key]
			if !ok || idVal == nil {
				logger.Warnf("Skipping staged row for %s missing key %s", name, key)
				continue
			}
			filter := bson.M{key: idVal}
			update := bson.M{"$set": row}
			writes = append(writes, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true))
		}
		if len(writes) == 0 {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		res, err := coll.BulkWrite(ctx, writes)
		if err != nil {
			return fmt.Errorf("bulk upsert into %s failed: %w", name, err)
		}
		total += len(writes)
		logger.Infof("Mongo BulkWrite %s: Match %d, Mod %d, Upsert %d", name, res.MatchedCount, res.ModifiedCount, res.UpsertedCount)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (m *MongoTarget) ReplaceFromFile(name, path string, schema map[string]string) (int, error) {
	side := name + "_staging"
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.db().Collection(side).Drop(ctx); err != nil {
		return 0, fmt.Errorf("failed to drop stale side collection %s: %w", side, err)
	}
	// Create up front so the swap below works even for an empty dump.
	if err := m.CreateTable(side, schema); err != nil {
		return 0, err
	}

	coll := m.db().Collection(side)
	total := 0
	err := m.eachBatch(path, schema, func(rows []map[string]interface{}) error {
		docs := make([]interface{}, len(rows))
		for i, row := range rows {
			docs[i] = row
		}
		insCtx, insCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer insCancel()
		if _, err := coll.InsertMany(insCtx, docs); err != nil {
			return fmt.Errorf("insert into side collection %s failed: %w", side, err)
		}
		total += len(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Swap the fully loaded side collection in, atomically replacing
	// the previous contents.
	cmdCtx, cmdCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cmdCancel()
	err = m.Client.Database("admin").RunCommand(cmdCtx, bson.D{
		{Key: "renameCollection", Value: m.Database + "." + side},
		{Key: "to", Value: m.Database + "." + name},
		{Key: "dropTarget", Value: true},
	}).Err()
	if err != nil {
		return 0, fmt.Errorf("failed to swap %s into place: %w", side, err)
	}
	return total, nil
}

// eachBatch streams the staging file in batches of writeBatchSize rows,
// restoring temporal values before handing them to fn.
func (m *MongoTarget) eachBatch(path string, schema map[string]string, fn func([]map[string]interface{}) error) error {
	r, err := staging.NewReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	batch := make([]map[string]interface{}, 0, writeBatchSize)
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := utils.RestoreRow(row, schema); err != nil {
			return err
		}
		batch = append(batch, row)
		if len(batch) == writeBatchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
