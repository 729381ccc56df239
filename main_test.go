package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// Every operator command must answer --man with its extended help, with
// no positional arguments required.
func TestManFlag(t *testing.T) {
	constructors := map[string]func() *cobra.Command{
		"serve":               newServeCmd,
		"set_book_completed":  newSetBookCompletedCmd,
		"resize_images":       newResizeImagesCmd,
		"post_book_completed": newPostBookCompletedCmd,
		"post_ongoing_update": newPostOngoingUpdateCmd,
		"create_sitemap":      newCreateSitemapCmd,
	}
	for name, build := range constructors {
		cmd := build()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"--man"})
		if err := cmd.Execute(); err != nil {
			t.Errorf("%s --man: %v", name, err)
			continue
		}
		if !strings.Contains(out.String(), "Usage:") {
			t.Errorf("%s --man printed no usage:\n%s", name, out.String())
		}
	}
}
