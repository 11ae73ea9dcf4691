// Package salesbot ingests heterogeneous sales spreadsheets from a remote
// folder, consolidates them into one normalized dataset and answers
// natural-language business questions over it.
//
// Ingestion handles native spreadsheets (read tab by tab), CSV files with
// optional gzip/bzip2/xz/zstandard compression, Excel workbooks and Parquet
// files. Every source goes through the same pipeline: column-name
// normalization against a Portuguese/English synonym table, date and
// numeric coercion, total-row removal and deduplication. The result is
// cached per folder with a fixed TTL.
//
// Question answering runs in two tiers. A planner asks the LLM for a
// structured query plan grounded in the dataset catalog; the plan is
// executed deterministically (filter, derive, aggregate, sort/limit) and
// the result narrated back. When planning fails, a fallback analyst sends a
// statistical digest plus a row sample instead, guarded by per-model row
// capacities so oversized datasets never reach the LLM.
//
// # Basic Usage
//
//	cfg, err := salesbot.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := salesbot.NewDriveClient(cfg.ServiceAccount, logger)
//	llm := salesbot.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, logger)
//	session := salesbot.NewSession(salesbot.SessionOptions{
//	    FolderID: cfg.FolderID,
//	    Loader:   salesbot.NewLoader(store, logger),
//	    Planner:  salesbot.NewPlanner(llm, logger),
//	    Narrator: salesbot.NewNarrator(llm, logger),
//	    Fallback: salesbot.NewFallbackAnalyst(llm, cfg.GeminiModel, nil, logger),
//	    Logger:   logger,
//	})
//	answer, err := session.Ask(ctx, "Qual foi a receita total por região em 2024?")
//
// # Ad-hoc SQL
//
// The consolidated dataset is also reachable as an in-memory SQLite table
// named "sales" via OpenSQL, for queries beyond what plans express.
package salesbot
