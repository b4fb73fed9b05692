// Package mcp exposes agekit graph operations as Model Context Protocol tools
// over a stdio JSON-RPC transport.
package mcp

import (
	"encoding/json"
)

// Tool is one MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// GetToolDefinitions returns the 4 MCP tool definitions with JSON schemas.
// These tools are designed for LLM-native usage with:
// - Verb-noun naming (clear intent)
// - Minimal required parameters
// - Smart defaults (the configured default graph)
func GetToolDefinitions() []Tool {
	return []Tool{
		getCypherTool(),
		getListGraphsTool(),
		getCreateGraphTool(),
		getDropGraphTool(),
	}
}

// getCypherTool returns the cypher tool definition
func getCypherTool() Tool {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The openCypher query to run, e.g. MATCH (n:City) RETURN n",
			},
			"graph": map[string]interface{}{
				"type":        "string",
				"description": "Graph to run against. Defaults to the configured default graph.",
			},
			"columns": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Result column names, one per RETURN expression. Defaults to a single 'result' column.",
			},
		},
		"required": []string{"query"},
	}

	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name: "cypher",
		Description: `Run an openCypher query against a graph and return the decoded vertices, edges and scalars.

Examples:
- cypher(query="MATCH (c:City) RETURN c")
- cypher(query="MATCH (a)-[r:ROAD]->(b) RETURN a, r, b", columns=["a","r","b"])`,
		InputSchema: schemaJSON,
	}
}

// getListGraphsTool returns the list_graphs tool definition
func getListGraphsTool() Tool {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}

	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name:        "list_graphs",
		Description: "List the names of every graph in the database.",
		InputSchema: schemaJSON,
	}
}

// getCreateGraphTool returns the create_graph tool definition
func getCreateGraphTool() Tool {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Name of the graph to create. Must be a plain identifier.",
			},
		},
		"required": []string{"name"},
	}

	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name:        "create_graph",
		Description: "Create a new named graph.",
		InputSchema: schemaJSON,
	}
}

// getDropGraphTool returns the drop_graph tool definition
func getDropGraphTool() Tool {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Name of the graph to drop.",
			},
			"cascade": map[string]interface{}{
				"type":        "boolean",
				"description": "Also drop the graph's contents.",
				"default":     true,
			},
		},
		"required": []string{"name"},
	}

	schemaJSON, _ := json.Marshal(schema)
	return Tool{
		Name:        "drop_graph",
		Description: "Drop a named graph, optionally cascading to its contents.",
		InputSchema: schemaJSON,
	}
}
