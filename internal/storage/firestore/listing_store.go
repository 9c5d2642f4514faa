// Package fsstore persists internship listings in a Firestore collection.
package fsstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
)

const emulatorHostEnv = "FIRESTORE_EMULATOR_HOST"

// Credentials are the service-account fields supplied through the environment.
type Credentials struct {
	ProjectID    string
	PrivateKeyID string
	PrivateKey   string
	ClientEmail  string
	ClientID     string
}

// Complete reports whether enough fields are present to build a service-account key.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.PrivateKey) != "" && strings.TrimSpace(c.ClientEmail) != ""
}

type serviceAccountKey struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKey              string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `json:"client_x509_cert_url"`
}

// JSON renders the credentials as a service-account key file. Literal "\n" sequences in
// the private key are expanded, since env files usually carry the PEM on one line.
func (c Credentials) JSON() ([]byte, error) {
	key := serviceAccountKey{
		Type:                    "service_account",
		ProjectID:               c.ProjectID,
		PrivateKeyID:            c.PrivateKeyID,
		PrivateKey:              strings.ReplaceAll(c.PrivateKey, `\n`, "\n"),
		ClientEmail:             c.ClientEmail,
		ClientID:                c.ClientID,
		AuthURI:                 "https://accounts.google.com/o/oauth2/auth",
		TokenURI:                "https://oauth2.googleapis.com/token",
		AuthProviderX509CertURL: "https://www.googleapis.com/oauth2/v1/certs",
		ClientX509CertURL:       "https://www.googleapis.com/robot/v1/metadata/x509/" + c.ClientEmail,
	}
	data, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("marshal service account: %w", err)
	}
	return data, nil
}

// Config describes the Firestore database and collection.
type Config struct {
	ProjectID   string
	Collection  string
	Credentials Credentials
}

// ListingStore writes listings into Firestore.
type ListingStore struct {
	client     *firestore.Client
	collection string
}

// NewListingStore opens a Firestore client. Service-account fields take precedence;
// otherwise Application Default Credentials or the emulator are used.
func NewListingStore(ctx context.Context, cfg Config, extra ...option.ClientOption) (*ListingStore, error) {
	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = cfg.Credentials.ProjectID
	}
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	opts, err := clientOptions(cfg.Credentials, os.Getenv(emulatorHostEnv) != "")
	if err != nil {
		return nil, err
	}
	client, err := firestore.NewClient(ctx, projectID, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return NewListingStoreWithClient(client, cfg.Collection), nil
}

// NewListingStoreWithClient wraps an existing client.
func NewListingStoreWithClient(client *firestore.Client, collection string) *ListingStore {
	if collection == "" {
		collection = internship.DefaultCollection
	}
	return &ListingStore{client: client, collection: collection}
}

func clientOptions(creds Credentials, emulator bool) ([]option.ClientOption, error) {
	if emulator || !creds.Complete() {
		return nil, nil
	}
	data, err := creds.JSON()
	if err != nil {
		return nil, err
	}
	return []option.ClientOption{option.WithCredentialsJSON(data)}, nil
}

// InsertListings creates one auto-ID document per listing inside a single transaction.
func (s *ListingStore) InsertListings(ctx context.Context, listings []internship.Listing) ([]string, error) {
	if len(listings) == 0 {
		return nil, nil
	}
	coll := s.client.Collection(s.collection)
	var ids []string
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		// Transactions may be retried; every attempt gets fresh document refs.
		ids = ids[:0]
		for _, listing := range listings {
			ref := coll.NewDoc()
			if err := tx.Create(ref, listing); err != nil {
				return fmt.Errorf("create %s/%s: %w", s.collection, ref.ID, err)
			}
			ids = append(ids, ref.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("commit listings: %w", err)
	}
	return ids, nil
}

// Close releases the client.
func (s *ListingStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close firestore: %w", err)
	}
	return nil
}
