package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SourceFile represents a stored supplier feed file
type SourceFile struct {
	ID           string    `json:"id"`            // src_{uuid}
	SupplierID   string    `json:"supplier_id"`   // Owning supplier
	UserID       string    `json:"user_id"`       // Account that uploaded it
	SourceURL    *string   `json:"source_url"`    // Download URL for API feeds, nil for uploads
	Filename     string    `json:"filename"`      // Original filename
	Format       string    `json:"format"`        // 'csv', 'xlsx', 'json'
	StoragePath  string    `json:"storage_path"`  // Storage key/path
	StorageType  string    `json:"storage_type"`  // 'local'
	ContentType  *string   `json:"content_type"`  // MIME type
	FileSize     *int64    `json:"file_size"`     // Size in bytes
	Checksum     string    `json:"checksum"`      // SHA-256 checksum
	ReceivedAt   time.Time `json:"received_at"`   // When file was uploaded or fetched
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateSourceFile creates a new source file record in the database
func CreateSourceFile(ctx context.Context, file *SourceFile) error {
	pool := Pool()

	now := time.Now()
	file.CreatedAt = now
	file.UpdatedAt = now

	query := `
		INSERT INTO source_files (
			id, supplier_id, user_id, source_url, filename, format,
			storage_path, storage_type, content_type, file_size,
			checksum, received_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (id) DO UPDATE SET
			source_url = EXCLUDED.source_url,
			filename = EXCLUDED.filename,
			format = EXCLUDED.format,
			storage_path = EXCLUDED.storage_path,
			storage_type = EXCLUDED.storage_type,
			content_type = EXCLUDED.content_type,
			file_size = EXCLUDED.file_size,
			checksum = EXCLUDED.checksum,
			received_at = EXCLUDED.received_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := pool.Exec(ctx, query,
		file.ID, file.SupplierID, file.UserID, file.SourceURL, file.Filename,
		file.Format, file.StoragePath, file.StorageType, file.ContentType,
		file.FileSize, file.Checksum, file.ReceivedAt,
		file.CreatedAt, file.UpdatedAt,
	)

	return err
}

// GetSourceFileByChecksum looks up a source file by its checksum for deduplication
func GetSourceFileByChecksum(ctx context.Context, supplierID, checksum string) (*SourceFile, error) {
	pool := Pool()

	query := `
		SELECT id, supplier_id, user_id, source_url, filename, format,
			storage_path, storage_type, content_type, file_size,
			checksum, received_at, created_at, updated_at
		FROM source_files
		WHERE supplier_id = $1 AND checksum = $2
		LIMIT 1
	`

	row := pool.QueryRow(ctx, query, supplierID, checksum)

	var file SourceFile
	err := row.Scan(
		&file.ID, &file.SupplierID, &file.UserID, &file.SourceURL, &file.Filename,
		&file.Format, &file.StoragePath, &file.StorageType, &file.ContentType,
		&file.FileSize, &file.Checksum, &file.ReceivedAt,
		&file.CreatedAt, &file.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return &file, nil
}

// GetSourceFileByID retrieves a source file by its ID
func GetSourceFileByID(ctx context.Context, id string) (*SourceFile, error) {
	pool := Pool()

	query := `
		SELECT id, supplier_id, user_id, source_url, filename, format,
			storage_path, storage_type, content_type, file_size,
			checksum, received_at, created_at, updated_at
		FROM source_files
		WHERE id = $1
	`

	row := pool.QueryRow(ctx, query, id)

	var file SourceFile
	err := row.Scan(
		&file.ID, &file.SupplierID, &file.UserID, &file.SourceURL, &file.Filename,
		&file.Format, &file.StoragePath, &file.StorageType, &file.ContentType,
		&file.FileSize, &file.Checksum, &file.ReceivedAt,
		&file.CreatedAt, &file.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return &file, nil
}

// GetSourceFilesBySupplier retrieves source files for a supplier with pagination
func GetSourceFilesBySupplier(ctx context.Context, supplierID string, limit, offset int) ([]SourceFile, error) {
	pool := Pool()

	query := `
		SELECT id, supplier_id, user_id, source_url, filename, format,
			storage_path, storage_type, content_type, file_size,
			checksum, received_at, created_at, updated_at
		FROM source_files
		WHERE supplier_id = $1
		ORDER BY received_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := pool.Query(ctx, query, supplierID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]SourceFile, 0)
	for rows.Next() {
		var file SourceFile
		err := rows.Scan(
			&file.ID, &file.SupplierID, &file.UserID, &file.SourceURL, &file.Filename,
			&file.Format, &file.StoragePath, &file.StorageType, &file.ContentType,
			&file.FileSize, &file.Checksum, &file.ReceivedAt,
			&file.CreatedAt, &file.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	return files, nil
}

// LinkSourceFileToJob associates a source file with an import job
func LinkSourceFileToJob(ctx context.Context, fileID, jobID string) error {
	pool := Pool()

	query := `
		UPDATE import_jobs
		SET source_file_id = $1
		WHERE id = $2
	`

	_, err := pool.Exec(ctx, query, fileID, jobID)
	return err
}

// CalculateChecksum calculates SHA-256 checksum for data
func CalculateChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// GenerateSourceFileID generates a new source file ID with src_ prefix
func GenerateSourceFileID() string {
	return fmt.Sprintf("src_%s", uuid.New().String())
}
