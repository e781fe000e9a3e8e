package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"repocontext/internal/chunker"
	"repocontext/internal/embeddings"
	"repocontext/internal/gitmine"
	"repocontext/internal/hybrid"
	"repocontext/internal/imports"
	"repocontext/internal/indexer"
	"repocontext/internal/qdrant"
	"repocontext/internal/search"
	"repocontext/internal/utils"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server exposes the context tools over stdio JSON-RPC.
type Server struct {
	miner     *gitmine.Miner
	extractor *imports.Extractor
	scorer    *hybrid.Scorer

	// Lazily initialized; only search_code needs a vector backend.
	qdrantClient *qdrant.Client
	embedClient  *embeddings.Client
}

func NewServer() *Server {
	miner := gitmine.New()
	extractor := imports.NewExtractor()

	return &Server{
		miner:     miner,
		extractor: extractor,
		scorer:    hybrid.NewScorer(miner, extractor),
	}
}

func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if s.qdrantClient != nil {
			s.qdrantClient.Close()
		}
	}()

	reader := bufio.NewReader(os.Stdin)
	writer := bufio.NewWriter(os.Stdout)

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}

		var req JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeError(writer, nil, -32700, "Parse error")
			continue
		}

		s.handleRequest(ctx, writer, &req)
	}

	return nil
}

func (s *Server) handleRequest(ctx context.Context, writer *bufio.Writer, req *JSONRPCRequest) {
	switch req.Method {
	case "initialize":
		s.handleInitialize(writer, req)
	case "tools/list":
		s.handleToolsList(writer, req)
	case "tools/call":
		s.handleToolsCall(ctx, writer, req)
	default:
		s.writeError(writer, req.ID, -32601, "Method not found")
	}
}

func (s *Server) handleInitialize(writer *bufio.Writer, req *JSONRPCRequest) {
	result := map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"serverInfo": map[string]string{
			"name":    "repocontext-mcp",
			"version": "1.0.0",
		},
		"capabilities": map[string]interface{}{
			"tools": map[string]bool{},
		},
	}
	s.writeResponse(writer, req.ID, result)
}

func (s *Server) handleToolsList(writer *bufio.Writer, req *JSONRPCRequest) {
	tools := []map[string]interface{}{
		{
			"name":        "related_files",
			"description": "Find files that historically change together with a target file",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"file":  map[string]string{"type": "string"},
					"root":  map[string]string{"type": "string"},
					"limit": map[string]string{"type": "integer"},
				},
				"required": []string{"file", "root"},
			},
		},
		{
			"name":        "hybrid_context",
			"description": "Rank candidate files by combined import and co-change relevance",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"file":      map[string]string{"type": "string"},
					"root":      map[string]string{"type": "string"},
					"limit":     map[string]string{"type": "integer"},
					"threshold": map[string]string{"type": "number"},
				},
				"required": []string{"file", "root"},
			},
		},
		{
			"name":        "file_imports",
			"description": "List module specifiers imported by a source file",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"file": map[string]string{"type": "string"},
				},
				"required": []string{"file"},
			},
		},
		{
			"name":        "code_chunks",
			"description": "Split a source file into function, method and class chunks",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"file": map[string]string{"type": "string"},
				},
				"required": []string{"file"},
			},
		},
		{
			"name":        "glob_files",
			"description": "Find files matching a glob pattern, ** supported",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"pattern": map[string]string{"type": "string"},
					"root":    map[string]string{"type": "string"},
				},
				"required": []string{"pattern", "root"},
			},
		},
		{
			"name":        "grep_search",
			"description": "Search file contents for a literal substring",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"pattern":        map[string]string{"type": "string"},
					"root":           map[string]string{"type": "string"},
					"case_sensitive": map[string]string{"type": "boolean"},
				},
				"required": []string{"pattern", "root"},
			},
		},
		{
			"name":        "search_code",
			"description": "Search the indexed codebase using a natural language query",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]string{"type": "string"},
					"root":  map[string]string{"type": "string"},
					"top_k": map[string]string{"type": "integer"},
				},
				"required": []string{"query", "root"},
			},
		},
	}
	s.writeResponse(writer, req.ID, map[string]interface{}{"tools": tools})
}

func (s *Server) handleToolsCall(ctx context.Context, writer *bufio.Writer, req *JSONRPCRequest) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(writer, req.ID, -32602, "Invalid params")
		return
	}

	var result interface{}
	var err error

	switch params.Name {
	case "related_files":
		result, err = s.handleRelatedFiles(ctx, params.Arguments)
	case "hybrid_context":
		result, err = s.handleHybridContext(ctx, params.Arguments)
	case "file_imports":
		result, err = s.handleFileImports(ctx, params.Arguments)
	case "code_chunks":
		result, err = s.handleCodeChunks(ctx, params.Arguments)
	case "glob_files":
		result, err = s.handleGlobFiles(params.Arguments)
	case "grep_search":
		result, err = s.handleGrepSearch(ctx, params.Arguments)
	case "search_code":
		result, err = s.handleSearchCode(ctx, params.Arguments)
	default:
		s.writeError(writer, req.ID, -32602, "Unknown tool")
		return
	}

	if err != nil {
		s.writeError(writer, req.ID, -32603, err.Error())
		return
	}

	s.writeResponse(writer, req.ID, map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": formatResult(result),
			},
		},
	})
}

func (s *Server) handleRelatedFiles(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var input struct {
		File  string `json:"file"`
		Root  string `json:"root"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, err
	}
	if input.Limit == 0 {
		input.Limit = 10
	}

	return s.miner.RelatedFiles(ctx, input.File, input.Root, input.Limit), nil
}

func (s *Server) handleHybridContext(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var input struct {
		File      string  `json:"file"`
		Root      string  `json:"root"`
		Limit     int     `json:"limit"`
		Threshold float64 `json:"threshold"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, err
	}
	if input.Limit == 0 {
		input.Limit = 10
	}

	return s.scorer.Context(ctx, input.File, input.Root, input.Limit, input.Threshold), nil
}

func (s *Server) handleFileImports(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var input struct {
		File string `json:"file"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, err
	}

	return s.extractor.List(ctx, input.File)
}

func (s *Server) handleCodeChunks(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var input struct {
		File string `json:"file"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, err
	}

	source, err := os.ReadFile(input.File)
	if err != nil {
		return nil, err
	}

	return chunker.ChunkFile(ctx, input.File, source), nil
}

func (s *Server) handleGlobFiles(args json.RawMessage) (interface{}, error) {
	var input struct {
		Pattern string `json:"pattern"`
		Root    string `json:"root"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, err
	}

	return search.Glob(input.Root, input.Pattern)
}

func (s *Server) handleGrepSearch(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var input struct {
		Pattern       string `json:"pattern"`
		Root          string `json:"root"`
		CaseSensitive bool   `json:"case_sensitive"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, err
	}

	return search.Grep(ctx, input.Pattern, input.Root, input.CaseSensitive)
}

func (s *Server) handleSearchCode(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var input struct {
		Query string `json:"query"`
		Root  string `json:"root"`
		TopK  int    `json:"top_k"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, err
	}
	if input.TopK == 0 {
		input.TopK = 10
	}

	if err := s.ensureVectorClients(); err != nil {
		return nil, err
	}

	root, err := utils.NormalizeProjectRoot(input.Root)
	if err != nil {
		return nil, err
	}
	projectID, err := utils.ComputeProjectID(root)
	if err != nil {
		return nil, err
	}

	vec, err := s.embedClient.Embed(ctx, input.Query)
	if err != nil {
		return nil, err
	}

	points, err := s.qdrantClient.Search(ctx, indexer.CollectionName(projectID), vec, uint64(input.TopK))
	if err != nil {
		return nil, err
	}

	results := make([]map[string]interface{}, 0, len(points))
	for _, p := range points {
		entry := qdrant.PayloadToMap(p.GetPayload())
		entry["score"] = p.GetScore()
		results = append(results, entry)
	}
	return results, nil
}

func (s *Server) ensureVectorClients() error {
	if s.qdrantClient == nil {
		qc, err := qdrant.NewClient()
		if err != nil {
			return fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		s.qdrantClient = qc
	}
	if s.embedClient == nil {
		s.embedClient = embeddings.NewClient()
	}
	return nil
}

func (s *Server) writeResponse(writer *bufio.Writer, id interface{}, result interface{}) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	data, _ := json.Marshal(resp)
	writer.Write(data)
	writer.WriteByte('\n')
	writer.Flush()
}

func (s *Server) writeError(writer *bufio.Writer, id interface{}, code int, message string) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	}
	data, _ := json.Marshal(resp)
	writer.Write(data)
	writer.WriteByte('\n')
	writer.Flush()
}

func formatResult(result interface{}) string {
	data, _ := json.MarshalIndent(result, "", "  ")
	return string(data)
}
