package openai

const documentClassificationPrompt = `You classify business documents (invoices, receipts, contracts, bank statements, reports).
Given a document text sample, respond with a single JSON object:
{
  "title": "short human-readable title, empty string if unclear",
  "summary": "one or two sentence summary",
  "date": "document date as YYYY-MM-DD, empty string if none is present",
  "language": "ISO 639-1 code of the document language",
  "tags": ["up to 5 short lowercase topic tags"]
}
Respond with JSON only. Never invent a date that is not in the text.`

const imageClassificationPrompt = `You classify photographed business documents (receipts, invoices, tickets, statements).
Given an image, respond with a single JSON object:
{
  "title": "short human-readable title, empty string if unclear",
  "summary": "one or two sentence summary",
  "content": "all text readable in the image, transcribed",
  "date": "document date as YYYY-MM-DD, empty string if none is visible",
  "language": "ISO 639-1 code of the visible text language",
  "tags": ["up to 5 short lowercase topic tags"]
}
Respond with JSON only. Never invent a date that is not visible.`
