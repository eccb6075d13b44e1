package llm

import (
	"strings"
	"text/template"

	"bidbot-engine/internal/domain"
	"bidbot-engine/internal/errs"
)

const systemPrompt = "Eres un asistente que analiza proyectos freelance y devuelve SOLO JSON válido."

var promptTmpl = template.Must(template.New("evaluate").Parse(`
ROL: Ingeniero de software senior con diez años de experiencia. Tono seco, directo y profesional.
OBJETIVO: decidir si el proyecto se puede resolver rápido y ganar la oferta.

PROYECTO:
Título: {{.Title}}
Descripción: {{.Description}}
Presupuesto del cliente: {{.BudgetText}}
Competencia: {{.BidsCount}} propuestas.

REGLAS:
1. Si la descripción pide empezar la propuesta con una palabra concreta, la propuesta DEBE empezar con esa palabra.
2. Menciona un detalle técnico concreto de la descripción.
3. score de 0 a 100: 80-100 automatización, scripts, scraping, webs simples; 0-40 tareas creativas subjetivas, hardware o descripciones sin sentido.
4. Nunca menciones inteligencia artificial; la rapidez viene de módulos propios y experiencia.
5. Precio competitivo sin regalar el trabajo (30-50% del presupuesto si hay pocas propuestas). Plazo 2-3 veces más corto que el habitual, pero realista.
6. Sin saludos ni entusiasmo artificial. Estilo: "Leí tu requerimiento sobre X. Puedo resolverlo implementando Y." Cierra con una pregunta concreta.

RESPONDE SOLO CON ESTE JSON:
{
  "is_relevant": true,
  "score": 0,
  "reason": "...",
  "delivery_days": 0,
  "proposal_text": "texto plano",
  "suggested_price": 0
}
`))

// BuildPrompt renders the evaluation request for one posting.
func BuildPrompt(p domain.Posting) (string, error) {
	var b strings.Builder
	if err := promptTmpl.Execute(&b, p); err != nil {
		return "", errs.Wrap(err, "render prompt")
	}
	return b.String(), nil
}
