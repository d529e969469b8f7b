package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"bid_monitoring_platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"
)

// MongoDB collection names
const (
	MongoDBName            = "bid_platform"
	MongoArchiveCollection = "bids_archive"
)

// ArchiveAfterDays is how long a closed bid stays in the primary store
// before it becomes eligible for archival
const ArchiveAfterDays = 30

// MongoDBClient handles the MongoDB Atlas archive connection
type MongoDBClient struct {
	client      *mongo.Client
	database    *mongo.Database
	mu          sync.RWMutex
	isConnected bool
	uriSet      bool   // Whether MONGODB_URI is configured
	lastError   string // Last connection error message
}

// ArchivedStage is a pipeline record embedded in an archived bid
type ArchivedStage struct {
	Stage       string     `bson:"stage"`
	StageOwner  string     `bson:"stage_owner"`
	StartedAt   time.Time  `bson:"started_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
	Notes       string     `bson:"notes,omitempty"`
}

// ArchivedHistory is an audit record embedded in an archived bid
type ArchivedHistory struct {
	ChangedAt    time.Time `bson:"changed_at"`
	ChangedBy    string    `bson:"changed_by"`
	FieldChanged string    `bson:"field_changed"`
	OldValue     string    `bson:"old_value"`
	NewValue     string    `bson:"new_value"`
}

// ArchivedDocument is a document record embedded in an archived bid
type ArchivedDocument struct {
	DocumentName  string    `bson:"document_name"`
	StorageKey    string    `bson:"storage_key"`
	SharePointURL string    `bson:"sharepoint_url"`
	UploadedBy    string    `bson:"uploaded_by,omitempty"`
	UploadedAt    time.Time `bson:"uploaded_at"`
}

// MongoArchivedBid is a closed bid with its full trail, as stored in
// the archive collection
type MongoArchivedBid struct {
	ID          uint               `bson:"_id"`
	ArchivedAt  time.Time          `bson:"archived_at"`
	Title       string             `bson:"title"`
	Description string             `bson:"description,omitempty"`
	Status      string             `bson:"status"`
	Stage       string             `bson:"stage"`
	DueDate     *time.Time         `bson:"due_date,omitempty"`
	AssignedTo  string             `bson:"assigned_to"`
	CreatedBy   string             `bson:"created_by"`
	ClientName  string             `bson:"client_name"`
	BidValue    string             `bson:"bid_value"`
	Reason      string             `bson:"reason,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
	Stages      []ArchivedStage    `bson:"stages"`
	History     []ArchivedHistory  `bson:"history"`
	Documents   []ArchivedDocument `bson:"documents"`
}

// Global MongoDB client instance
var GlobalMongoClient *MongoDBClient

// InitMongoDBClient initializes the MongoDB client
func InitMongoDBClient() error {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		log.Println("MONGODB_URI not set, MongoDB archive disabled")
		GlobalMongoClient = &MongoDBClient{
			uriSet:    false,
			lastError: "MONGODB_URI environment variable not set",
		}
		return nil
	}

	// Initialize with URI set flag
	GlobalMongoClient = &MongoDBClient{
		uriSet: true,
	}

	return GlobalMongoClient.Connect()
}

// Connect establishes connection to MongoDB Atlas
func (m *MongoDBClient) Connect() error {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		m.lastError = "MONGODB_URI environment variable not set"
		return fmt.Errorf("%s", m.lastError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Configure client options with retry
	clientOptions := options.Client().
		ApplyURI(mongoURI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		m.lastError = fmt.Sprintf("Failed to connect: %v", err)
		log.Printf("Failed to connect to MongoDB Atlas: %v", err)
		return err
	}

	// Verify connection with ping
	if err := client.Ping(ctx, nil); err != nil {
		m.lastError = fmt.Sprintf("Failed to ping: %v", err)
		log.Printf("Failed to ping MongoDB Atlas: %v", err)
		// Disconnect on ping failure
		client.Disconnect(ctx)
		return err
	}

	m.mu.Lock()
	m.client = client
	m.database = client.Database(MongoDBName)
	m.isConnected = true
	m.lastError = ""
	m.mu.Unlock()

	// Create indexes
	m.createIndexes()

	log.Println("MongoDB Atlas connected successfully")
	return nil
}

// Reconnect attempts to reconnect to MongoDB Atlas
func (m *MongoDBClient) Reconnect() error {
	m.mu.Lock()
	if m.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		m.client.Disconnect(ctx)
		cancel()
	}
	m.isConnected = false
	m.mu.Unlock()

	return m.Connect()
}

// IsConfigured returns whether MongoDB is configured and connected
func (m *MongoDBClient) IsConfigured() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isConnected
}

// IsURISet returns whether MONGODB_URI environment variable is set
func (m *MongoDBClient) IsURISet() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uriSet
}

// GetLastError returns the last connection error
func (m *MongoDBClient) GetLastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// GetConnectionStatus returns detailed connection status
func (m *MongoDBClient) GetConnectionStatus() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := map[string]interface{}{
		"uri_set":   m.uriSet,
		"connected": m.isConnected,
	}

	if m.lastError != "" {
		status["error"] = m.lastError
	}

	return status
}

// Close closes the MongoDB connection
func (m *MongoDBClient) Close() error {
	if m.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return m.client.Disconnect(ctx)
	}
	return nil
}

// createIndexes creates necessary indexes for collections
func (m *MongoDBClient) createIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	collection := m.database.Collection(MongoArchiveCollection)
	collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "archived_at", Value: -1}},
	})
	collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}},
	})

	log.Println("MongoDB indexes created")
}

// buildArchiveDoc assembles the archive document for a closed bid
func buildArchiveDoc(db *gorm.DB, bid *models.Bid, archivedAt time.Time) (*MongoArchivedBid, error) {
	var stages []models.BidStage
	if err := db.Where("bid_id = ?", bid.ID).Order("started_at ASC").Find(&stages).Error; err != nil {
		return nil, err
	}
	var history []models.BidHistory
	if err := db.Where("bid_id = ?", bid.ID).Order("changed_at ASC").Find(&history).Error; err != nil {
		return nil, err
	}
	var documents []models.Document
	if err := db.Where("bid_id = ?", bid.ID).Find(&documents).Error; err != nil {
		return nil, err
	}

	doc := &MongoArchivedBid{
		ID:          bid.ID,
		ArchivedAt:  archivedAt,
		Title:       bid.Title,
		Description: bid.Description,
		Status:      bid.Status,
		Stage:       bid.Stage,
		DueDate:     bid.DueDate,
		AssignedTo:  bid.AssignedTo,
		CreatedBy:   bid.CreatedBy,
		ClientName:  bid.ClientName,
		BidValue:    bid.BidValue.String(),
		Reason:      bid.Reason,
		CreatedAt:   bid.CreatedAt,
		UpdatedAt:   bid.UpdatedAt,
	}
	for _, stage := range stages {
		doc.Stages = append(doc.Stages, ArchivedStage{
			Stage:       stage.Stage,
			StageOwner:  stage.StageOwner,
			StartedAt:   stage.StartedAt,
			CompletedAt: stage.CompletedAt,
			Notes:       stage.Notes,
		})
	}
	for _, entry := range history {
		doc.History = append(doc.History, ArchivedHistory{
			ChangedAt:    entry.ChangedAt,
			ChangedBy:    entry.ChangedBy,
			FieldChanged: entry.FieldChanged,
			OldValue:     entry.OldValue,
			NewValue:     entry.NewValue,
		})
	}
	for _, document := range documents {
		doc.Documents = append(doc.Documents, ArchivedDocument{
			DocumentName:  document.DocumentName,
			StorageKey:    document.StorageKey,
			SharePointURL: document.SharePointURL,
			UploadedBy:    document.UploadedBy,
			UploadedAt:    document.UploadedAt,
		})
	}
	return doc, nil
}

// ArchiveClosedBids upserts Won/Lost bids last touched before the
// cutoff into the archive collection, with their stages, history and
// document records embedded. Primary rows are left in place.
func (m *MongoDBClient) ArchiveClosedBids(db *gorm.DB, olderThan time.Time) (int, error) {
	if !m.IsConfigured() {
		return 0, fmt.Errorf("MongoDB not configured")
	}

	var bids []models.Bid
	err := db.Where("status IN ? AND updated_at < ?",
		[]string{models.BidStatusWon, models.BidStatusLost}, olderThan).
		Find(&bids).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load closed bids: %w", err)
	}
	if len(bids) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	collection := m.database.Collection(MongoArchiveCollection)

	// Prepare bulk operations
	var operations []mongo.WriteModel
	now := time.Now()

	for i := range bids {
		doc, err := buildArchiveDoc(db, &bids[i], now)
		if err != nil {
			log.Printf("Warning: failed to assemble archive doc for bid %d: %v", bids[i].ID, err)
			continue
		}

		operation := mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetReplacement(doc).
			SetUpsert(true)

		operations = append(operations, operation)
	}

	if len(operations) == 0 {
		return 0, nil
	}

	// Execute bulk write in batches of 100
	batchSize := 100
	for i := 0; i < len(operations); i += batchSize {
		end := i + batchSize
		if end > len(operations) {
			end = len(operations)
		}

		_, err := collection.BulkWrite(ctx, operations[i:end])
		if err != nil {
			return 0, fmt.Errorf("failed to bulk archive bids to MongoDB: %w", err)
		}
	}

	log.Printf("Archived %d closed bids to MongoDB Atlas", len(operations))
	return len(operations), nil
}

// LoadArchivedBid loads a single archived bid by ID
func (m *MongoDBClient) LoadArchivedBid(id uint) (*MongoArchivedBid, error) {
	if !m.IsConfigured() {
		return nil, fmt.Errorf("MongoDB not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	collection := m.database.Collection(MongoArchiveCollection)

	var doc MongoArchivedBid
	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("bid %d not found in archive", id)
		}
		return nil, fmt.Errorf("failed to load archived bid %d: %w", id, err)
	}

	return &doc, nil
}

// CountArchivedBids returns the number of archived bids
func (m *MongoDBClient) CountArchivedBids() (int64, error) {
	if !m.IsConfigured() {
		return 0, fmt.Errorf("MongoDB not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	collection := m.database.Collection(MongoArchiveCollection)
	return collection.CountDocuments(ctx, bson.M{})
}

// GetArchiveStats returns statistics about the archive collection
func (m *MongoDBClient) GetArchiveStats() (map[string]interface{}, error) {
	if !m.IsConfigured() {
		return nil, fmt.Errorf("MongoDB not configured")
	}

	stats := make(map[string]interface{})

	count, err := m.CountArchivedBids()
	if err == nil {
		stats["archived_bids"] = count
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	collection := m.database.Collection(MongoArchiveCollection)
	var latest struct {
		ArchivedAt time.Time `bson:"archived_at"`
	}
	err = collection.FindOne(ctx, bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "archived_at", Value: -1}}).
			SetProjection(bson.M{"archived_at": 1})).Decode(&latest)
	if err == nil {
		stats["last_archived_at"] = latest.ArchivedAt.Format(time.RFC3339)
	}

	stats["connected"] = m.IsConfigured()

	return stats, nil
}
