// Package mocks provides shared test doubles for the external tools the runner drives.
//
// # Usage
//
//	import "viberunner/internal/mocks"
//
//	func TestPush(t *testing.T) {
//	    ex := mocks.NewMockExecutor().
//	        Respond("git status --porcelain", exec.Result{Stdout: " M main.go\n"})
//	    git := scm.NewGit(ex, t.TempDir())
//	    // ...
//	}
//
// # Available Mocks
//
//   - MockExecutor: scripted exec.Executor keyed by command prefix
//   - MockLLMClient: llm.Client returning queued responses
//   - MockCIGateway: github.CIGateway with scripted check snapshots
//   - MockSCM: scm.Gateway recording every call
//   - MockAnalyzer: gemini.Analyzer with fixed reports
package mocks
