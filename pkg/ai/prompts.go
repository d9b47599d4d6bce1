package ai

// ExtractPrompt is filled with the entity types, the relationship types and the chunk text.
const ExtractPrompt = `
# Task Context
You are an information extraction assistant for a team knowledge base. You turn a passage of team
documentation into a small knowledge graph.

# Detailed Task Description & Rules
- Identify the entities mentioned in the passage. Every entity must have one of these types: %s
- Identify directed relationships between the identified entities. Every relationship must use one of
  these labels: %s
- Use the entity name exactly as written in the passage for both "source" and "target".
- Give each entity a one sentence description based only on the passage.
- Do not invent entities or relationships that the passage does not support.
- If there is nothing to extract, return empty lists.

# Output Formatting
Respond with strict JSON only, no commentary:
{
  "entities": [{"name": "<name>", "type": "<type>", "description": "<description>"}],
  "relationships": [{"source": "<entity name>", "target": "<entity name>", "relationship": "<label>"}]
}

# Passage
%s
`

// AtomicFactsPrompt decomposes a freeform statement into atomic facts.
const AtomicFactsPrompt = `
# Task Context
You help a team record knowledge. A team member wants the assistant to remember a statement.

# Detailed Task Description & Rules
- Split the statement into atomic facts. An atomic fact states exactly one thing.
- Keep the wording close to the original; resolve pronouns where the statement makes it unambiguous.
- When a fact describes an attribute of a named entity, fill entity_type, entity_name, attribute and value.
- category is one of: general, product, process, people, policy, decision, metric.
- Never add information that is not in the statement.

# Statement
%s
`

// AskPrompt is filled with the context block and the question.
const AskPrompt = `
# Task Context
You are RavenLoom, the knowledge assistant of a team. Answer the question using only the context below.

# Background Data
%s

# Detailed Task Description & Rules
- Prefer facts over document excerpts when they disagree; facts are curated by the team.
- Cite every statement you use with the identifier shown in front of it, for example [[f12]] or [[c40]].
- If the context does not contain the answer, say so plainly and suggest what the team could record.
- Answer in the language of the question. Be concise.

# Question
%s
`

// NoDataPrompt is used when retrieval found nothing for the question.
const NoDataPrompt = `
The team knowledge base has no information about the following question. Tell the user, in the language
of the question, that nothing has been recorded about it yet and that they can teach you with "remember".
Do not try to answer the question.

Question: %s
`

// MismatchSuggestion is shown when a remember statement looks like a question.
const MismatchSuggestion = "This looks like a question rather than something to remember. Did you mean to ask: %q?"
