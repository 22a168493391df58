package version

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestVersionStrings keeps Full consistent with Short.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Name+" "+Short())
	require.Contains(t, Full(), "commit "+Commit)
	require.Len(t, Fields(), 6)
}

// TestVersionCommand prints the full or short form.
func TestVersionCommand(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		args []string
		want string
	}{
		{args: []string{"version"}, want: Full() + "\n"},
		{args: []string{"version", "--short"}, want: Short() + "\n"},
	} {
		root := &cobra.Command{Use: Name}
		AttachCobraVersionCommand(root)

		var out bytes.Buffer

		root.SetOut(&out)
		root.SetArgs(tc.args)

		require.NoError(t, root.Execute())
		require.Equal(t, tc.want, out.String())
	}
}
