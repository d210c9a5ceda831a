//go:build js && wasm

// Command wasm exposes the evidence ledger to JavaScript so per-chunk
// results can be merged in the browser.
package main

import (
	"encoding/json"
	"syscall/js"

	"rlm/internal/adapter/analyzer"
	"rlm/internal/adapter/ledger"
	"rlm/internal/domain"
)

var (
	tokenizer *analyzer.Tokenizer
	lg        *ledger.Ledger
	ingested  int
)

func init() {
	tokenizer = analyzer.NewTokenizer()
	lg = ledger.New(tokenizer)
}

func main() {
	c := make(chan struct{})

	js.Global().Set("rlmIngest", js.FuncOf(ingest))
	js.Global().Set("rlmFinalize", js.FuncOf(finalize))
	js.Global().Set("rlmClear", js.FuncOf(clearLedger))
	js.Global().Set("rlmNormalize", js.FuncOf(normalize))

	<-c
}

// ingest takes one result or an array of results as a JSON string.
func ingest(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: rlmIngest(resultJSON)")
	}

	raw := []byte(args[0].String())
	var results []domain.ChunkResult
	if err := json.Unmarshal(raw, &results); err != nil {
		var one domain.ChunkResult
		if err := json.Unmarshal(raw, &one); err != nil {
			return makeError("invalid result JSON: " + err.Error())
		}
		results = []domain.ChunkResult{one}
	}

	for i, r := range results {
		if err := lg.Ingest(r); err != nil {
			return makeResult(map[string]interface{}{
				"success":  false,
				"ingested": i,
				"error":    err.Error(),
			})
		}
		ingested++
	}

	return makeResult(map[string]interface{}{
		"success":  true,
		"ingested": len(results),
		"total":    ingested,
	})
}

func finalize(this js.Value, args []js.Value) interface{} {
	report := lg.Finalize()
	result, err := json.Marshal(report)
	if err != nil {
		return makeError("encoding failed: " + err.Error())
	}
	return string(result)
}

func clearLedger(this js.Value, args []js.Value) interface{} {
	lg = ledger.New(tokenizer)
	ingested = 0
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func normalize(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: rlmNormalize(text)")
	}
	return tokenizer.Normalize(args[0].String())
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
