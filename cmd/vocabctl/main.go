package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sightline-ai/percept"
	"github.com/sightline-ai/percept/internal/version"
)

var (
	serverURL string
	apiKey    string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "vocabctl",
	Short: "vocabctl - Operate a running perceptd daemon",
	Long: `vocabctl talks to the perceptd ops API: daemon health and status,
vocabulary management and manual learning triggers.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "perceptd base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Bearer token (defaults to PERCEPT_API_KEY)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "HTTP request timeout")

	vocabCmd.AddCommand(vocabListCmd)
	vocabCmd.AddCommand(vocabAddCmd)
	vocabCmd.AddCommand(vocabPruneCmd)
	vocabCmd.AddCommand(vocabPushCmd)
	learnCmd.AddCommand(learnDescriptionCmd)
	learnCmd.AddCommand(learnPOICmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(vocabCmd)
	rootCmd.AddCommand(learnCmd)
}

// mustClient builds the API client from the persistent flags.
func mustClient() *percept.Client {
	key := apiKey
	if key == "" {
		key = os.Getenv("PERCEPT_API_KEY")
	}
	opts := []percept.Option{percept.WithTimeout(timeout)}
	if key != "" {
		opts = append(opts, percept.WithAPIKey(key))
	}
	client, err := percept.New(serverURL, opts...)
	if err != nil {
		fail("%v", err)
	}
	return client
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "❌ "+format+"\n", args...)
	os.Exit(1)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vocabctl %s (%s)\n", version.Version, version.Commit)
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the daemon and its dependencies",
	Run:   runHealthCmd,
}

func runHealthCmd(cmd *cobra.Command, args []string) {
	report, err := mustClient().Health(context.Background())
	if err != nil {
		fail("Health request failed: %v", err)
	}

	fmt.Printf("Daemon status: %s\n", report.Status)

	// Stable order for scripting
	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mark := "✅"
		if report.Checks[name] != "ok" {
			mark = "❌"
		}
		fmt.Printf("  %s %s: %s\n", mark, name, report.Checks[name])
	}

	if report.Status != "ok" {
		os.Exit(1)
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline statistics and vocabulary counts",
	Run:   runStatusCmd,
}

func runStatusCmd(cmd *cobra.Command, args []string) {
	st, err := mustClient().Status(context.Background())
	if err != nil {
		fail("Status request failed: %v", err)
	}

	fmt.Printf("perceptd %s (%s)\n", st.Version, st.Commit)
	fmt.Printf("Frames processed: %d\n", st.Pipeline.Frames)
	fmt.Printf("Vocabulary pushes: %d\n", st.Pipeline.VocabPushes)
	fmt.Println("Latency (rolling window):")
	printLayer("guardian", st.Pipeline.Guardian)
	printLayer("learner", st.Pipeline.Learner)
	printLayer("vocab push", st.Pipeline.VocabPush)
	printLayer("frame total", st.Pipeline.Total)
	fmt.Printf("Vocabulary: %d base + %d/%d dynamic\n",
		st.Vocabulary.Base, st.Vocabulary.Dynamic, st.Vocabulary.Capacity)
	fmt.Printf("Safety classes: %d\n", st.SafetyClasses)
}

func printLayer(name string, s percept.LayerStats) {
	if s.Count == 0 {
		fmt.Printf("  %-12s no samples\n", name+":")
		return
	}
	fmt.Printf("  %-12s mean %.1f ms  p95 %.1f ms  max %.1f ms  (n=%d)\n",
		name+":", s.Mean, s.P95, s.Max, s.Count)
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show embedding token spend against the budget",
	Run:   runUsageCmd,
}

func runUsageCmd(cmd *cobra.Command, args []string) {
	client := mustClient()

	fmt.Println("Embedding token usage:")
	for _, window := range []string{"day", "month"} {
		ur, err := client.Usage(context.Background(), window)
		if err != nil {
			fail("Usage request failed: %v", err)
		}
		printUsageWindow(ur)
	}
}

func printUsageWindow(ur percept.UsageReport) {
	if ur.Limit == 0 {
		fmt.Printf("  %-7s %d tokens used (no limit)\n", ur.Window+":", ur.Used)
		return
	}
	mark := ""
	if ur.Exhausted {
		mark = "  ❌ exhausted"
	}
	fmt.Printf("  %-7s %d / %d tokens, %d remaining%s\n",
		ur.Window+":", ur.Used, ur.Limit, ur.Remaining, mark)
}

var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "Manage the learned vocabulary",
}

var vocabListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active detector vocabulary",
	Run:   runVocabListCmd,
}

func runVocabListCmd(cmd *cobra.Command, args []string) {
	vl, err := mustClient().Vocabulary(context.Background())
	if err != nil {
		fail("Vocabulary request failed: %v", err)
	}

	fmt.Printf("Active classes: %d (%d base + %d dynamic, capacity %d)\n",
		len(vl.Classes), vl.Base, len(vl.Dynamic), vl.Capacity)
	if !vl.LastUpdated.IsZero() {
		fmt.Printf("Last updated: %s\n", vl.LastUpdated.Format("2006-01-02 15:04:05"))
	}
	if len(vl.Dynamic) == 0 {
		fmt.Println("No dynamic entries.")
		return
	}

	fmt.Println("\nDynamic entries:")
	for _, e := range vl.Dynamic {
		fmt.Printf("  %-24s source=%-7s uses=%-3d first seen %s\n",
			e.Name, e.Source, e.UseCount, e.FirstSeen.Format("2006-01-02 15:04"))
		for k, v := range e.Metadata {
			fmt.Printf("    %s: %s\n", k, v)
		}
	}
}

var vocabAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Teach the daemon one object name",
	Long: `Teach the daemon one object name through the user-memory path.
Multi-word names are joined from the arguments:

  vocabctl vocab add red mug
  vocabctl vocab add "charging dock" --meta room=kitchen`,
	Args: cobra.MinimumNArgs(1),
	Run:  runVocabAddCmd,
}

var addMeta []string

func init() {
	vocabAddCmd.Flags().StringArrayVar(&addMeta, "meta", nil, "Metadata key=value pair (repeatable)")
}

func runVocabAddCmd(cmd *cobra.Command, args []string) {
	name := strings.Join(args, " ")

	var meta map[string]string
	for _, pair := range addMeta {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			fail("Invalid --meta %q, expected key=value", pair)
		}
		if meta == nil {
			meta = make(map[string]string)
		}
		meta[k] = v
	}

	res, err := mustClient().Teach(context.Background(), name, meta)
	if err != nil {
		fail("Teach request failed: %v", err)
	}

	if res.Added {
		fmt.Printf("✅ %q added, %d dynamic entries\n", res.Name, res.DynamicEntries)
	} else {
		fmt.Printf("%q was not added (already tracked, a base term, or the vocabulary is full)\n", res.Name)
	}
}

var vocabPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Evict stale unused vocabulary entries",
	Run:   runVocabPruneCmd,
}

func runVocabPruneCmd(cmd *cobra.Command, args []string) {
	res, err := mustClient().Prune(context.Background())
	if err != nil {
		fail("Prune request failed: %v", err)
	}

	if res.Removed == 0 {
		fmt.Printf("Nothing to prune, %d dynamic entries kept\n", res.DynamicEntries)
		return
	}
	fmt.Printf("✅ Pruned %d entries, %d remain\n", res.Removed, res.DynamicEntries)
}

var vocabPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Force a vocabulary push to the detector",
	Run:   runVocabPushCmd,
}

func runVocabPushCmd(cmd *cobra.Command, args []string) {
	classes, err := mustClient().PushVocabulary(context.Background())
	if err != nil {
		fail("Push request failed: %v", err)
	}
	fmt.Printf("✅ Pushed %d classes to the detector\n", classes)
}

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Trigger a learning pass manually",
}

var learnDescriptionCmd = &cobra.Command{
	Use:   "description [text]",
	Short: "Learn object names from a scene description",
	Args:  cobra.MinimumNArgs(1),
	Run:   runLearnDescriptionCmd,
}

func runLearnDescriptionCmd(cmd *cobra.Command, args []string) {
	text := strings.Join(args, " ")
	admitted, err := mustClient().LearnDescription(context.Background(), text)
	if err != nil {
		fail("Learn request failed: %v", err)
	}
	printAdmitted(admitted)
}

var learnPOICmd = &cobra.Command{
	Use:   "poi [name]...",
	Short: "Learn object names from nearby points of interest",
	Long: `Learn object names from nearby points of interest. Each argument is
one venue name, so multi-word venues need quoting:

  vocabctl learn poi "Chase Bank" "Blue Bottle Coffee"`,
	Args: cobra.MinimumNArgs(1),
	Run:  runLearnPOICmd,
}

func runLearnPOICmd(cmd *cobra.Command, args []string) {
	admitted, err := mustClient().LearnPOI(context.Background(), args)
	if err != nil {
		fail("Learn request failed: %v", err)
	}
	printAdmitted(admitted)
}

func printAdmitted(admitted []string) {
	if len(admitted) == 0 {
		fmt.Println("No new objects admitted.")
		return
	}
	fmt.Printf("✅ Admitted %d objects: %s\n", len(admitted), strings.Join(admitted, ", "))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
