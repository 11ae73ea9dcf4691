// Command salesbot loads a remote sales folder and answers questions about
// it on stdin. Commands other than questions: /kpis, /stats, /reload,
// /export <file.csv|file.xlsx>, /sair.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alpha-insights/salesbot"
	"github.com/alpha-insights/salesbot/domain/model"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "salesbot:", err)
		os.Exit(1)
	}
}

func run() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := salesbot.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store := salesbot.NewDriveClient(cfg.ServiceAccount, logger)
	llm := salesbot.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	session := salesbot.NewSession(salesbot.SessionOptions{
		FolderID: cfg.FolderID,
		Loader:   salesbot.NewLoader(store, logger),
		Planner:  salesbot.NewPlanner(llm, logger),
		Narrator: salesbot.NewNarrator(llm, logger),
		Fallback: salesbot.NewFallbackAnalyst(llm, cfg.GeminiModel, nil, logger),
		Logger:   logger,
	})

	stats, summary, files := session.Stats(ctx)
	if stats.RowCount == 0 {
		printDiagnostics(stats, summary)
		return fmt.Errorf("%w: verifique as configurações e a estrutura das planilhas", salesbot.ErrNoFiles)
	}
	fmt.Printf("Dados de %d transações carregados de %d arquivos em %s.\n",
		stats.RowCount, len(files), stats.LoadDuration.Round(10*time.Millisecond))
	printKPIs(session.KPIs(ctx))
	fmt.Println("\nQual a sua pergunta sobre as vendas? (/kpis, /stats, /reload, /export arquivo, /sair)")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			done, err := handleCommand(ctx, session, line)
			if err != nil {
				fmt.Println("Erro:", err)
			}
			if done {
				return nil
			}
			continue
		}

		answer, err := session.Ask(ctx, line)
		if err != nil {
			if errors.Is(err, salesbot.ErrEmptyDataset) {
				fmt.Println("Os dados de vendas não estão disponíveis; ajuste os filtros ou recarregue com /reload.")
				continue
			}
			return err
		}
		fmt.Println(answer)
	}
}

func handleCommand(ctx context.Context, session *salesbot.Session, line string) (done bool, err error) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/sair", "/quit", "/exit":
		return true, nil
	case "/kpis":
		printKPIs(session.KPIs(ctx))
	case "/stats":
		stats, summary, files := session.Stats(ctx)
		printDiagnostics(stats, summary)
		for _, f := range files {
			fmt.Printf("  %s (%s): %d linhas\n", f.Name, f.MIMEType, f.Rows)
		}
	case "/reload":
		session.Reload()
		fmt.Println("Cache limpo; os dados serão recarregados na próxima pergunta.")
	case "/export":
		return false, exportDataset(ctx, session, strings.TrimSpace(arg))
	default:
		fmt.Println("Comando desconhecido:", cmd)
	}
	return false, nil
}

func exportDataset(ctx context.Context, session *salesbot.Session, path string) error {
	if path == "" {
		return errors.New("informe o arquivo de destino, ex.: /export vendas.csv")
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		err = session.ExportXLSX(ctx, out)
	} else {
		var data []byte
		if data, err = session.ExportCSV(ctx); err == nil {
			_, err = out.Write(data)
		}
	}
	if err != nil {
		return err
	}
	fmt.Println("Exportado para", path)
	return nil
}

func printKPIs(kpis salesbot.KPIs) {
	fmt.Printf("Receita total (estimada): %s | Transações: %d | Ticket médio: %s\n",
		model.FormatBRL(kpis.TotalRevenue), kpis.Transactions, model.FormatBRL(kpis.AverageTicket))
	if kpis.PeriodStart != "" {
		fmt.Printf("Período nos dados: %s a %s\n", kpis.PeriodStart, kpis.PeriodEnd)
	}
	if kpis.InvalidDates > 0 {
		fmt.Printf("Aviso: %d linhas sem data válida estão incluídas.\n", kpis.InvalidDates)
	}
	if kpis.TopProduct != "" {
		fmt.Println("Top produto:", kpis.TopProduct)
	}
}

func printDiagnostics(stats model.LoadStats, summary model.SourceSummary) {
	fmt.Printf("Arquivos suportados: %d | Linhas: %d | Duplicatas removidas: %d | Abas agregadas ignoradas: %d\n",
		stats.FileCount, stats.RowCount, stats.DedupRemoved, stats.AggregatedTabsSkipped)
	for mime, count := range summary.CountsByMIME {
		fmt.Printf("  %s: %d\n", mime, count)
	}
	for _, name := range summary.Unsupported {
		fmt.Printf("  sem suporte: %s\n", name)
	}
}
