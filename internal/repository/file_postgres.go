package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
)

// FileRepository defines the interface for uploaded-file metadata persistence
type FileRepository interface {
	Create(ctx context.Context, file entity.StoredFile) (*entity.StoredFile, error)
	GetByID(ctx context.Context, fileID string) (*entity.StoredFile, error)
	UpdateScanStatus(ctx context.Context, fileID string, status entity.ScanStatus) error
	ListByScanStatus(ctx context.Context, status entity.ScanStatus) ([]*entity.StoredFile, error)
}

var _ FileRepository = &FilePostgres{}

// FilePostgres implements FileRepository using PostgreSQL
type FilePostgres struct {
	db *pgxpool.Pool
}

func NewFilePostgres(db *pgxpool.Pool) *FilePostgres {
	return &FilePostgres{db: db}
}

func (r *FilePostgres) Create(ctx context.Context, file entity.StoredFile) (*entity.StoredFile, error) {
	fileID, err := uuid.Parse(file.ID)
	if err != nil {
		return nil, fmt.Errorf("parse file ID: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO files (id, filename, mime_type, size, upload_type, scan_status, storage_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, filename, mime_type, size, upload_type, scan_status, storage_path, created_at, updated_at`,
		pgtype.UUID{Bytes: fileID, Valid: true},
		file.Filename,
		file.MimeType,
		file.Size,
		string(file.UploadType),
		string(file.ScanStatus),
		file.StoragePath,
	)

	stored, err := scanStoredFile(row)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	return stored, nil
}

func (r *FilePostgres) GetByID(ctx context.Context, fileID string) (*entity.StoredFile, error) {
	fid, err := uuid.Parse(fileID)
	if err != nil {
		return nil, fmt.Errorf("parse file ID: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		SELECT id, filename, mime_type, size, upload_type, scan_status, storage_path, created_at, updated_at
		FROM files WHERE id = $1`,
		pgtype.UUID{Bytes: fid, Valid: true},
	)

	stored, err := scanStoredFile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrFileNotFound
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return stored, nil
}

func (r *FilePostgres) UpdateScanStatus(ctx context.Context, fileID string, status entity.ScanStatus) error {
	fid, err := uuid.Parse(fileID)
	if err != nil {
		return fmt.Errorf("parse file ID: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE files SET scan_status = $2, updated_at = now() WHERE id = $1`,
		pgtype.UUID{Bytes: fid, Valid: true},
		string(status),
	)
	if err != nil {
		return fmt.Errorf("update scan status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrFileNotFound
	}
	return nil
}

func (r *FilePostgres) ListByScanStatus(ctx context.Context, status entity.ScanStatus) ([]*entity.StoredFile, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, filename, mime_type, size, upload_type, scan_status, storage_path, created_at, updated_at
		FROM files WHERE scan_status = $1 ORDER BY created_at`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []*entity.StoredFile
	for rows.Next() {
		stored, err := scanStoredFile(rows)
		if err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}
		files = append(files, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

func scanStoredFile(row pgx.Row) (*entity.StoredFile, error) {
	var (
		id         pgtype.UUID
		file       entity.StoredFile
		uploadType string
		scanStatus string
	)
	if err := row.Scan(&id, &file.Filename, &file.MimeType, &file.Size,
		&uploadType, &scanStatus, &file.StoragePath, &file.CreatedAt, &file.UpdatedAt); err != nil {
		return nil, err
	}
	file.ID = uuid.UUID(id.Bytes).String()
	file.UploadType = entity.UploadType(uploadType)
	file.ScanStatus = entity.ScanStatus(scanStatus)
	return &file, nil
}
