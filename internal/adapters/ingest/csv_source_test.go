package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/email-guardian/internal/core"
)

const exportHeader = "_time,sender,subject,attachments,recipients,time_month,leaver,termination_date,bunit,department,user_response,final_outcome,policy_name,justifications"

func parseExport(t *testing.T, csvText string) []*core.InboundEmail {
	t.Helper()

	source := NewCSVSource(zap.NewNop())
	inbound, err := source.Parse(strings.NewReader(csvText))
	require.NoError(t, err)
	return inbound
}

func TestParseRejectsMissingColumns(t *testing.T) {
	source := NewCSVSource(zap.NewNop())

	_, err := source.Parse(strings.NewReader("_time,sender,subject\n"))

	var malformed *core.MalformedInputError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Missing, "recipients")
	assert.Contains(t, malformed.Missing, "leaver")
}

func TestParseSingleRecipient(t *testing.T) {
	inbound := parseExport(t, exportHeader+"\n"+
		`2026-08-28 10:00:00,alice@corp.com,quarterly numbers,report.xlsx,bob@corp.com,2026-08,no,-,finance,accounting,-,-,PCI policy,-`+"\n")

	require.Len(t, inbound, 1)
	email := inbound[0].Email
	assert.Equal(t, "alice@corp.com", email.Sender)
	assert.Equal(t, time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC), email.Timestamp)
	assert.Equal(t, "report.xlsx", email.Attachments)
	assert.Equal(t, "2026-08", email.TimeMonth)

	require.Len(t, inbound[0].Recipients, 1)
	rcpt := inbound[0].Recipients[0]
	assert.Equal(t, "bob@corp.com", rcpt.Recipient)
	assert.Equal(t, "corp.com", rcpt.RecipientDomain)
	assert.Equal(t, "no", rcpt.Leaver)
	// "-" cells are nulls
	assert.Equal(t, "", rcpt.TerminationDate)
	assert.Equal(t, "", rcpt.UserResponse)
	assert.Equal(t, "PCI policy", rcpt.PolicyName)
}

func TestParseSplitsRecipientList(t *testing.T) {
	inbound := parseExport(t, exportHeader+"\n"+
		`2026-08-28 10:00:00,alice@corp.com,team update,"a.pdf,b.pdf","bob@corp.com,carol@ext.com",2026-08,no,-,eng,platform,-,-,"DLP,PCI",-`+"\n")

	require.Len(t, inbound, 1)
	email := inbound[0].Email
	assert.Equal(t, "a.pdf, b.pdf", email.Attachments)
	assert.Equal(t, []string{"bob@corp.com", "carol@ext.com"}, email.Recipients)
	assert.Equal(t, "bob@corp.com,carol@ext.com", email.OriginalRecipients)

	require.Len(t, inbound[0].Recipients, 2)
	assert.Equal(t, "ext.com", inbound[0].Recipients[1].RecipientDomain)
	assert.Equal(t, "DLP, PCI", inbound[0].Recipients[0].PolicyName)
}

func TestParseGroupsRowsIntoOneEmail(t *testing.T) {
	inbound := parseExport(t, exportHeader+"\n"+
		`2026-08-28 10:00:00,alice@corp.com,same subject,-,bob@corp.com,2026-08,no,-,eng,platform,-,-,-,-`+"\n"+
		`2026-08-28 10:00:00,alice@corp.com,same subject,-,carol@corp.com,2026-08,yes,2026-09-01,eng,platform,-,-,-,-`+"\n"+
		`2026-08-28 11:00:00,alice@corp.com,same subject,-,dave@corp.com,2026-08,no,-,eng,platform,-,-,-,-`+"\n")

	// Same (_time, sender, subject) collapses; the 11:00 row is distinct
	require.Len(t, inbound, 2)
	require.Len(t, inbound[0].Recipients, 2)
	assert.Equal(t, "yes", inbound[0].Recipients[1].Leaver)
	require.Len(t, inbound[1].Recipients, 1)
}

func TestParseBadTimestampYieldsZeroTime(t *testing.T) {
	inbound := parseExport(t, exportHeader+"\n"+
		`not-a-time,alice@corp.com,subject,-,bob@corp.com,2026-08,no,-,eng,platform,-,-,-,-`+"\n")

	require.Len(t, inbound, 1)
	assert.True(t, inbound[0].Email.Timestamp.IsZero())
}

func TestParseEmptyRecipientCellKeptForValidation(t *testing.T) {
	inbound := parseExport(t, exportHeader+"\n"+
		`2026-08-28 10:00:00,alice@corp.com,subject,-,-,2026-08,no,-,eng,platform,-,-,-,-`+"\n")

	require.Len(t, inbound, 1)
	require.Len(t, inbound[0].Recipients, 1)
	assert.Equal(t, "", inbound[0].Recipients[0].Recipient)
}
