package extract

// Invoice extraction prompts

const systemPromptInvoiceReader = `You are an expert invoice data extractor.

Your task is to read invoice documents (scans, photos, PDFs) and extract
structured data. Invoices may use any currency; keep amounts exactly as they
appear on the document, including currency symbols.

Always output valid JSON matching the requested schema. If a field is not
visible on the document, use an empty string for it.`

const userPromptInvoiceReader = `Extract invoice data from this document.

Output JSON with this structure:
{
  "vendor": "string",
  "date": "string, as printed on the invoice",
  "total": "string, with currency symbol, e.g. $1,234.56",
  "invoice_number": "string",
  "tax": "string, with currency symbol",
  "subtotal": "string, with currency symbol",
  "summary": "one short sentence describing what this invoice is for",
  "line_items": [
    {
      "description": "string",
      "quantity": "string",
      "unit_price": "string, with currency symbol",
      "amount": "string, with currency symbol"
    }
  ]
}

Extract all visible information. For any text that appears blurry or unclear,
make your best attempt to read it.`
