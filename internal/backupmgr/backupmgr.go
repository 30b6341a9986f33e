// Package backupmgr implements timestamped zip backups of the note/card
// database, adapted from cmd/sparesd's original BackupManager: same
// zip-create/restore/cleanup shape, retargeted from the Anki-style
// collection.db onto this engine's store.SQLiteStore-backed database file.
package backupmgr

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Manager handles backup and restore of the underlying SQLite file.
type Manager struct {
	dbPath    string
	backupDir string
}

// New builds a Manager for the database at dbPath, writing backups under
// backupDir.
func New(dbPath, backupDir string) *Manager {
	return &Manager{dbPath: dbPath, backupDir: backupDir}
}

// CreateBackup writes a timestamped zip of the database to backupDir and
// returns its path.
func (m *Manager) CreateBackup() (string, error) {
	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	backupPath := filepath.Join(m.backupDir, fmt.Sprintf("spares-backup-%s.zip", timestamp))

	zipFile, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	defer zipWriter.Close()

	if err := m.addFileToZip(zipWriter, m.dbPath, "spares.db"); err != nil {
		return "", fmt.Errorf("add database to backup: %w", err)
	}

	metadata := fmt.Sprintf("Backup created: %s\nDatabase: %s\n", time.Now().Format(time.RFC3339), filepath.Base(m.dbPath))
	metadataWriter, err := zipWriter.Create("backup-info.txt")
	if err != nil {
		return "", fmt.Errorf("create metadata: %w", err)
	}
	if _, err := metadataWriter.Write([]byte(metadata)); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}

	log.Printf("backup created: %s", backupPath)
	return backupPath, nil
}

// RestoreBackup replaces the current database file with the one inside
// backupPath. The caller must close any open store before calling this and
// reopen it afterward.
func (m *Manager) RestoreBackup(backupPath string) error {
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %s", backupPath)
	}

	zipReader, err := zip.OpenReader(backupPath)
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	defer zipReader.Close()

	var dbFile *zip.File
	for _, file := range zipReader.File {
		if file.Name == "spares.db" {
			dbFile = file
			break
		}
	}
	if dbFile == nil {
		return fmt.Errorf("backup does not contain spares.db")
	}

	tempPath := m.dbPath + ".restore.tmp"
	defer os.Remove(tempPath)

	if err := m.extractFile(dbFile, tempPath); err != nil {
		return fmt.Errorf("extract database: %w", err)
	}

	currentBackupPath := m.dbPath + ".pre-restore.backup"
	if err := m.copyFile(m.dbPath, currentBackupPath); err != nil {
		log.Printf("warning: could not back up current database: %v", err)
	} else {
		log.Printf("current database backed up to: %s", currentBackupPath)
	}

	if err := os.Rename(tempPath, m.dbPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}

	log.Printf("database restored from: %s", backupPath)
	return nil
}

// CleanupOldBackups deletes backups beyond the retentionCount most recent.
func (m *Manager) CleanupOldBackups(retentionCount int) error {
	files, err := filepath.Glob(filepath.Join(m.backupDir, "spares-backup-*.zip"))
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	if len(files) <= retentionCount {
		return nil
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	var infos []fileInfo
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		infos = append(infos, fileInfo{path: path, modTime: info.ModTime()})
	}
	for i := 0; i < len(infos); i++ {
		for j := i + 1; j < len(infos); j++ {
			if infos[i].modTime.After(infos[j].modTime) {
				infos[i], infos[j] = infos[j], infos[i]
			}
		}
	}

	deleteCount := len(infos) - retentionCount
	for i := 0; i < deleteCount; i++ {
		if err := os.Remove(infos[i].path); err != nil {
			log.Printf("warning: failed to delete old backup %s: %v", infos[i].path, err)
		} else {
			log.Printf("deleted old backup: %s", infos[i].path)
		}
	}
	return nil
}

func (m *Manager) addFileToZip(zipWriter *zip.Writer, filePath, nameInZip string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer, err := zipWriter.Create(nameInZip)
	if err != nil {
		return err
	}
	_, err = io.Copy(writer, file)
	return err
}

func (m *Manager) extractFile(zipFile *zip.File, destPath string) error {
	reader, err := zipFile.Open()
	if err != nil {
		return err
	}
	defer reader.Close()

	writer, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer writer.Close()

	_, err = io.Copy(writer, reader)
	return err
}

func (m *Manager) copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	return err
}
