// Package indexer pushes code chunks into a per-project Qdrant collection so
// that downstream tools can run semantic search over them. Indexing is
// incremental: a per-project file-hash map detects added, modified and
// removed files between runs.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	qdrantpb "github.com/qdrant/go-client/qdrant"

	"repocontext/internal/chunker"
	"repocontext/internal/embeddings"
	"repocontext/internal/models"
	"repocontext/internal/qdrant"
	"repocontext/internal/treesitter"
	"repocontext/internal/utils"
)

const (
	defaultCollectionName = "repocontext_default"
	collectionPrefix      = "repocontext_"
	numWorkers            = 4
)

// CollectionName returns the Qdrant collection name for a given project ID.
// If projectID is empty, the shared default collection is used.
func CollectionName(projectID string) string {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return defaultCollectionName
	}
	return fmt.Sprintf("%s%s", collectionPrefix, projectID)
}

type Indexer struct {
	qdrant     *qdrant.Client
	embeddings *embeddings.Client
	projectID  string
	collection string
}

func NewIndexer(qc *qdrant.Client, ec *embeddings.Client) *Indexer {
	return &Indexer{
		qdrant:     qc,
		embeddings: ec,
	}
}

// IndexProject chunks every supported source file under rootPath and upserts
// the chunks as vector points. Only files whose content hash changed since
// the previous run are re-indexed.
func (idx *Indexer) IndexProject(ctx context.Context, rootPath string) error {
	normalizedRoot, err := utils.NormalizeProjectRoot(rootPath)
	if err != nil {
		return fmt.Errorf("failed to normalize project root: %w", err)
	}

	projectID, err := utils.ComputeProjectID(normalizedRoot)
	if err != nil {
		return fmt.Errorf("failed to compute project id: %w", err)
	}
	idx.projectID = projectID
	idx.collection = CollectionName(projectID)
	fmt.Printf("→ Project fingerprint: %s\n", projectID)
	fmt.Printf("→ Using collection: %s\n", idx.collection)

	files, err := utils.GetAllSourceFiles(normalizedRoot)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Found %d source files\n", len(files))

	if len(files) == 0 {
		fmt.Println("⚠ No source files found to index")
		return nil
	}

	prevHashes, err := loadFileHashes(projectID)
	if err != nil {
		return fmt.Errorf("failed to load file hashes: %w", err)
	}

	currentHashes := make(map[string]string, len(files))
	var changedFiles []string

	for _, f := range files {
		hash, herr := hashFile(f)
		if herr != nil {
			fmt.Fprintf(os.Stderr, "✗ Failed to hash %s: %v\n", f, herr)
			continue
		}
		key := normalizeFilePath(f)
		currentHashes[key] = hash
		if prev, ok := prevHashes[key]; !ok || prev != hash {
			changedFiles = append(changedFiles, f)
		}
	}

	var deletedFiles []string
	for path := range prevHashes {
		if _, ok := currentHashes[path]; !ok {
			deletedFiles = append(deletedFiles, path)
		}
	}

	fmt.Printf("→ Incremental index: %d added/modified, %d deleted, %d total files\n",
		len(changedFiles), len(deletedFiles), len(files))

	if len(changedFiles) == 0 && len(deletedFiles) == 0 {
		fmt.Println("✓ No changes detected, index is already up to date")
		return nil
	}

	for _, normalizedPath := range deletedFiles {
		if err := idx.qdrant.DeleteByFile(ctx, idx.collection, normalizedPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ Error deleting vectors for removed file %s: %v\n", normalizedPath, err)
		} else {
			fmt.Printf("✓ Deleted vectors for removed file %s\n", normalizedPath)
		}
	}

	if len(changedFiles) > 0 {
		var wg sync.WaitGroup
		fileCh := make(chan string, len(changedFiles))

		for i := 0; i < numWorkers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for path := range fileCh {
					if err := idx.processFile(ctx, path); err != nil {
						fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", path, err)
					}
				}
			}()
		}

		for _, f := range changedFiles {
			fileCh <- f
		}
		close(fileCh)
		wg.Wait()
	}

	if err := saveFileHashes(idx.projectID, currentHashes); err != nil {
		return fmt.Errorf("failed to save file hashes: %w", err)
	}

	fmt.Println("✓ Indexing completed")
	return nil
}

func (idx *Indexer) processFile(ctx context.Context, path string) error {
	if idx.collection == "" {
		return fmt.Errorf("collection name is not set on indexer")
	}
	normalizedPath := normalizeFilePath(path)

	// Clear existing vectors first so removed chunks do not leave stale
	// points behind.
	if err := idx.qdrant.DeleteByFile(ctx, idx.collection, normalizedPath); err != nil {
		fmt.Fprintf(os.Stderr, "✗ Error deleting existing vectors for %s: %v\n", path, err)
	}

	lang := treesitter.LanguageForFile(path)
	if lang == "" {
		return nil
	}

	code, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	chunks := chunker.Chunk(ctx, code, lang)
	if len(chunks) == 0 {
		return nil
	}

	fmt.Printf("→ Processing %s (%d chunks)\n", path, len(chunks))

	contents := make([]string, 0, len(chunks))
	for _, c := range chunks {
		contents = append(contents, embeddingText(normalizedPath, string(lang), c))
	}

	vectors, err := idx.embeddings.EmbedBatch(ctx, contents)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Error embedding %s: %v\n", path, err)
		return err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return fmt.Errorf("no embedding vectors returned for %s", path)
	}

	// Ensure the collection lazily using the actual embedding dimension so a
	// separate probe request is unnecessary.
	if err := idx.qdrant.EnsureCollection(ctx, idx.collection, uint64(len(vectors[0]))); err != nil {
		return err
	}

	points := make([]*qdrantpb.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		hash := utils.HashContent(c.Content)
		payload := models.ChunkPayload{
			FilePath:  normalizedPath,
			Language:  string(lang),
			Kind:      c.Kind,
			Name:      c.Name,
			Parent:    c.Parent,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			CodeHash:  hash,
			Content:   c.Content,
		}

		points = append(points, &qdrantpb.PointStruct{
			Id: &qdrantpb.PointId{
				PointIdOptions: &qdrantpb.PointId_Num{
					Num: contentHashToPointID(hash),
				},
			},
			Vectors: &qdrantpb.Vectors{
				VectorsOptions: &qdrantpb.Vectors_Vector{
					Vector: &qdrantpb.Vector{
						Data: vectors[i],
					},
				},
			},
			Payload: qdrant.MapToPayload(map[string]interface{}{
				"file_path":  payload.FilePath,
				"language":   payload.Language,
				"kind":       payload.Kind,
				"name":       payload.Name,
				"parent":     payload.Parent,
				"start_line": payload.StartLine,
				"end_line":   payload.EndLine,
				"code_hash":  payload.CodeHash,
				"content":    payload.Content,
			}),
		})
	}

	if err := idx.qdrant.Upsert(ctx, idx.collection, points); err != nil {
		fmt.Fprintf(os.Stderr, "✗ Error upserting %s: %v\n", path, err)
		return err
	}

	fmt.Printf("✓ Indexed %s (%d vectors)\n", path, len(points))
	return nil
}

// embeddingText combines chunk metadata with its body so symbol- and
// position-level signals survive embedding.
func embeddingText(filePath, lang string, c models.CodeChunk) string {
	metaLines := []string{
		fmt.Sprintf("file_path: %s", filePath),
		fmt.Sprintf("language: %s", lang),
		fmt.Sprintf("kind: %s", c.Kind),
	}
	if c.Name != "" {
		metaLines = append(metaLines, fmt.Sprintf("name: %s", c.Name))
	}
	if c.Parent != "" {
		metaLines = append(metaLines, fmt.Sprintf("parent: %s", c.Parent))
	}
	metaLines = append(metaLines, fmt.Sprintf("lines: %d-%d", c.StartLine, c.EndLine))

	return fmt.Sprintf("%s\n\n%s", strings.Join(metaLines, "\n"), c.Content)
}

// contentHashToPointID converts a hex-encoded SHA-256 hash string into a
// 64-bit numeric ID accepted by Qdrant's PointId_Num field.
func contentHashToPointID(hash string) uint64 {
	h := sha256.Sum256([]byte(hash))
	return binary.BigEndian.Uint64(h[:8])
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return utils.HashContent(string(data)), nil
}

func normalizeFilePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}

	abs := path
	if !filepath.IsAbs(abs) {
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
	}
	abs = filepath.Clean(abs)
	normalized := filepath.ToSlash(abs)
	if runtime.GOOS == "windows" {
		normalized = strings.ToLower(normalized)
	}
	return normalized
}

// loadFileHashes loads the last-seen file hash map, stored as JSON under the
// user state dir scoped by project ID.
func loadFileHashes(projectID string) (map[string]string, error) {
	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	var hashes map[string]string
	if err := json.Unmarshal(data, &hashes); err != nil {
		return nil, err
	}
	if hashes == nil {
		hashes = make(map[string]string)
	}
	return hashes, nil
}

func saveFileHashes(projectID string, hashes map[string]string) error {
	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statePath, data, 0o644)
}

func fileHashStatePath(projectID string) (string, error) {
	stateDir, err := utils.UserStateDir()
	if err != nil {
		return "", err
	}
	if projectID == "" {
		projectID = "default"
	}
	return filepath.Join(stateDir, fmt.Sprintf("%s_file_hashes.json", projectID)), nil
}

// ClearProjectState removes the on-disk file-hash map for a project.
func ClearProjectState(projectID string) error {
	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		return err
	}
	if err := os.Remove(statePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
