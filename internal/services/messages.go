package services

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// Requester-facing texts. Telegram HTML parse mode.
const (
	MsgWelcome       = "👋 Bot listo.\nUsa /permiso para iniciar el registro.\n\nEscribe /cancel para abortar un flujo."
	MsgCancelled     = "❎ Flujo cancelado. Usa /permiso para iniciar de nuevo."
	MsgBusy          = "⚠️ Ya tienes un registro en curso. Termina o manda /cancel."
	MsgFlowExpired   = "⌛ Tu registro expiró por inactividad. Usa /permiso para iniciar de nuevo."
	MsgFallback      = "No entendí. Usa /permiso para iniciar o /cancel para abortar."
	MsgIssueFailed   = "❌ No se pudo generar tu folio. Intenta de nuevo con /permiso."
	MsgNoFolios      = "❌ No hay folios disponibles por ahora. Intenta en unos minutos."
	MsgNoPending     = "No tienes folios pendientes de pago."
	MsgProofNoTicket = "No encontré un folio pendiente para ese comprobante."
	MsgDone          = "🎉 Listo. Si quieres otro, manda /permiso."
)

func reminderText(id string, left time.Duration) string {
	return fmt.Sprintf("⏰ Recordatorio: tu folio <b>%s</b> vence en %d minutos. Envía tu comprobante de pago para conservarlo.",
		id, int(left.Round(time.Minute)/time.Minute))
}

func expiredText(id string) string {
	return fmt.Sprintf("❌ El folio <b>%s</b> venció sin pago y fue cancelado. Usa /permiso para generar uno nuevo.", id)
}

func confirmedText(id string) string {
	return fmt.Sprintf("✅ Pago confirmado. Tu folio <b>%s</b> quedó activo.", id)
}

func issuedText(id string, fields map[string]string, window time.Duration, url string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Registro generado\nFolio: <b>%s</b>\n", id)
	fmt.Fprintf(&b, "%s %s (%s)\n", html.EscapeString(fields["marca"]), html.EscapeString(fields["linea"]), html.EscapeString(fields["anio"]))
	fmt.Fprintf(&b, "Tienes %s para enviar tu comprobante de pago.", humanWindow(window))
	if url != "" {
		b.WriteString("\n" + url)
	}
	return b.String()
}

// AmbiguousText asks the requester to name the folio a proof belongs to.
func AmbiguousText(ids []string) string {
	return "Tienes varios folios pendientes: " + strings.Join(ids, ", ") +
		".\nReenvía el comprobante con el folio en el texto, p. ej. <code>" + ids[0] + "</code>."
}

func PendingListText(ids []string) string {
	return "Folios pendientes de pago:\n" + strings.Join(ids, "\n")
}

func humanWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hora"
		}
		return fmt.Sprintf("%d horas", h)
	}
	return fmt.Sprintf("%d minutos", int(d/time.Minute))
}
