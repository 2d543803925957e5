package mcpserver

// PayloadContract describes how Code Stash interprets record payloads and
// which symbologies it can display, for LLM consumers creating records.
const PayloadContract = `# Code Stash Payload Contract

A record is a name, a payload string and a symbology. The payload is stored
exactly as given; Code Stash never rewrites it.

## Symbologies

- Use the identifiers returned by the ` + "`" + `list_symbologies` + "`" + ` tool or the
  ` + "`" + `codestash://symbologies` + "`" + ` resource (e.g. ` + "`" + `QR` + "`" + `, ` + "`" + `Code128` + "`" + `, ` + "`" + `EAN13` + "`" + `).
- Identifiers are case-insensitive. The scanner form
  ` + "`" + `VNBarcodeSymbologyQR` + "`" + ` is accepted as well.
- When no symbology is given, the library default is used (normally QR).
- ` + "`" + `local` + "`" + ` symbologies (QR, Code128) render immediately.
- ` + "`" + `remote` + "`" + ` symbologies render through the image service and may report
  ` + "`" + `pending` + "`" + ` for a short while.
- ` + "`" + `unsupported` + "`" + ` symbologies can be stored but never displayed.

## Payload kinds

1. **Wi-Fi** payloads match the whole string
   ` + "`" + `WIFI:S:<ssid>;T:<WEP|WPA|>;P:<password>;;` + "`" + `, optionally with
   ` + "`" + `;H:true` + "`" + ` or ` + "`" + `;H:false` + "`" + ` before the final ` + "`" + `;;` + "`" + `. Field order is fixed.
2. **Web links** start with ` + "`" + `https:` + "`" + `. Plain ` + "`" + `http:` + "`" + ` is treated as text.
3. Everything else is **plain text**.

Use the ` + "`" + `classify_payload` + "`" + ` tool to check how a payload will be read.

## Linear codes

Linear symbologies carry digits or a restricted character set. Payloads the
image service cannot encode leave the record undisplayable; pick QR when
unsure.

## Example

` + "```" + `json
{"name": "Office Wi-Fi", "payload": "WIFI:S:Office;T:WPA;P:secret;;", "symbology": "QR"}
` + "```" + `
`
