package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/presencectl/internal/core/domain"
	"github.com/99minutos/presencectl/internal/core/ports"
)

const (
	connectTimeout        = 10 * time.Second
	credentialsCollection = "client_credentials"
)

var _ ports.CredentialStore = (*CredentialStore)(nil)

// Config captures the settings required to reach the credential database.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect dials cfg.URI, pings the primary and returns the selected database.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = connectTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, client.Database(cfg.Database), nil
}

type credentialDoc struct {
	Slot      string    `bson:"_id"`
	Token     string    `bson:"token"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// CredentialStore keeps the credential in one document of the
// client_credentials collection, keyed by slot name.
type CredentialStore struct {
	coll *mongo.Collection
	slot string
	now  func() time.Time
}

func NewCredentialStore(db *mongo.Database, slot string) *CredentialStore {
	return &CredentialStore{
		coll: db.Collection(credentialsCollection),
		slot: slot,
		now:  time.Now,
	}
}

func (s *CredentialStore) Get(ctx context.Context) (domain.Credential, error) {
	var doc credentialDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": s.slot}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find credential: %w", err)
	}
	return domain.Credential(doc.Token), nil
}

// Set upserts the slot document, replacing any previous credential.
func (s *CredentialStore) Set(ctx context.Context, cred domain.Credential) error {
	if cred.IsZero() {
		return s.Clear(ctx)
	}
	doc := credentialDoc{Slot: s.slot, Token: string(cred), UpdatedAt: s.now().UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": s.slot}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": s.slot}); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}
