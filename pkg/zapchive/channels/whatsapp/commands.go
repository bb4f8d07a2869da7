// Package whatsapp – commands.go handles chat commands inside archived
// groups. Commands map directly onto the archive, summary and search
// operations; they are answered in-chat and never archived themselves.
package whatsapp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/jpereira/zapchive/pkg/zapchive/search"
)

// commandTimeout bounds one command execution, including backend calls.
const commandTimeout = 2 * time.Minute

const helpText = `Comandos:
!resumo [AAAA-MM-DD] — resumo do dia (padrão: ontem)
!buscar <texto> — busca semântica neste grupo
!grupos — grupos arquivados
!ajuda — esta mensagem`

// handleCommand parses and dispatches one chat command.
func (c *Channel) handleCommand(evt *events.Message, content string) {
	cmdLine := strings.TrimPrefix(content, c.cfg.CommandPrefix)
	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		return
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]
	chat := evt.Info.Chat

	// Commands run detached so a slow backend never blocks the event loop.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		var reply string
		switch cmd {
		case "resumo":
			reply = c.cmdSummary(ctx, chat.String(), args)
		case "buscar":
			reply = c.cmdSearch(ctx, chat.String(), args)
		case "grupos":
			reply = c.cmdGroups()
		case "ajuda":
			reply = helpText
		default:
			return
		}

		if reply == "" {
			return
		}
		if err := c.sendText(ctx, chat, reply); err != nil {
			c.logger.Error("command reply failed", "command", cmd, "error", err)
		}
	}()
}

// cmdSummary returns the daily summary for this group, generating it on
// demand. Defaults to yesterday's local date.
func (c *Channel) cmdSummary(ctx context.Context, groupJID string, args []string) string {
	date := time.Now().In(c.loc).AddDate(0, 0, -1).Format("2006-01-02")
	if len(args) > 0 {
		if _, err := time.Parse("2006-01-02", args[0]); err != nil {
			return "Data inválida. Use o formato AAAA-MM-DD."
		}
		date = args[0]
	}

	text, err := c.pipeline.GenerateAndStore(ctx, groupJID, date)
	if err != nil {
		c.logger.Error("on-demand summary failed", "group", groupJID, "date", date, "error", err)
		return "Não foi possível gerar o resumo agora. Tente novamente mais tarde."
	}
	if text == "" {
		return fmt.Sprintf("Nenhuma mensagem arquivada em %s.", date)
	}
	return fmt.Sprintf("Resumo de %s:\n\n%s", date, text)
}

// cmdSearch runs a semantic search scoped to this group.
func (c *Channel) cmdSearch(ctx context.Context, groupJID string, args []string) string {
	if len(args) == 0 {
		return "Uso: !buscar <texto>"
	}
	if !c.searcher.Available() {
		return "Busca semântica indisponível (embeddings não configurados)."
	}

	query := strings.Join(args, " ")
	hits, err := c.searcher.Search(ctx, query, groupJID, search.DefaultLimit)
	if err != nil {
		c.logger.Error("search failed", "group", groupJID, "error", err)
		return "A busca falhou. Tente novamente mais tarde."
	}
	return search.FormatResults(hits, c.loc)
}

// cmdGroups lists archived groups by recent activity.
func (c *Channel) cmdGroups() string {
	groups, err := c.store.ListGroups()
	if err != nil {
		c.logger.Error("list groups failed", "error", err)
		return "Não foi possível listar os grupos."
	}
	if len(groups) == 0 {
		return "Nenhum grupo arquivado ainda."
	}

	var b strings.Builder
	b.WriteString("Grupos arquivados:\n")
	for _, g := range groups {
		name := g.Name
		if name == "" {
			name = g.JID
		}
		b.WriteString(fmt.Sprintf("• %s — %d mensagens\n", name, g.MessageCount))
	}
	return strings.TrimRight(b.String(), "\n")
}
