package jsonrpc

// toolSchema describes one callable tool in MCP's inputSchema shape.
type toolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func toolDefinitions() []toolSchema {
	return []toolSchema{
		{
			Name:        "memory_search",
			Description: "Search memories using hybrid vector + keyword search. Returns ranked results with relevance scores. Use index_only=true for token-efficient browsing, then memory_get for full content.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query":      map[string]interface{}{"type": "string", "description": "Natural language search query"},
					"limit":      map[string]interface{}{"type": "integer", "description": "Maximum results to return (default: 10)", "default": 10},
					"index_only": map[string]interface{}{"type": "boolean", "description": "If true, return titles/metadata only (saves 90%+ tokens).", "default": false},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "memory_store",
			Description: "Store a new memory (observation, decision, preference, fact, task, etc.)",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"content":     map[string]interface{}{"type": "string", "description": "Memory content to store"},
					"title":       map[string]interface{}{"type": "string", "description": "Short title (max 10 words)"},
					"memory_type": map[string]interface{}{"type": "string", "enum": []string{"observation", "decision", "preference", "fact", "task", "session", "bugfix", "discovery"}, "default": "observation"},
					"priority":    map[string]interface{}{"type": "string", "enum": []string{"low", "medium", "high"}, "default": "medium"},
					"tags":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
				"required": []string{"content", "title"},
			},
		},
		{
			Name:        "memory_get",
			Description: "Get full content of specific memories by ID.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"ids": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}, "description": "Memory IDs to retrieve"},
				},
				"required": []string{"ids"},
			},
		},
		{
			Name:        "memory_delete",
			Description: "Delete a memory by ID",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": map[string]interface{}{"type": "string", "description": "Memory ID to delete"},
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        "memory_stats",
			Description: "Get memory system statistics",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}
