package mcpserver

// ExportFormat describes the JSON records written for every dataset, for
// LLM consumers reading the output files.
const ExportFormat = `# vaultbridge Export Format

Every dataset export is a JSON array with one record per selected
document, in vault enumeration order. Fields that would be empty are
omitted.

## Record

` + "```" + `json
{
  "fileName": "B",                           // basename without extension
  "relativePath": "Notes/B.md",              // vault-relative, forward slashes
  "uri": "obsidian://adv-uri?vault=Vault&filepath=Notes%2FB.md",
  "stringTags": "go rust",                   // space-joined, lowercased, unique
  "frontmatter": { "image": "lib/cover.jpg" },
  "aliases": ["Bee"],
  "links": [
    { "link": "C" },
    { "link": "C#Part", "cleanTarget": "C", "resolvedPath": "C.md" },
    { "link": "#Heading", "cleanTarget": "B", "resolvedPath": "Notes/B.md" },
    { "link": "D", "displayText": "the D note" }
  ],
  "resolvedLinks": [ { "relativePath": "C.md", "fileName": "C", "count": 2 } ],
  "backlinks": [ { "sourcePath": "A.md", "displayName": "A" } ]
}
` + "```" + `

## Rules

1. **links** keep only the last path segment of the target; the fragment is kept verbatim.
2. **cleanTarget** is the target without its ` + "`" + `#fragment` + "`" + `; a link starting with ` + "`" + `#` + "`" + ` points at its own document.
3. **resolvedPath** is missing when the target does not exist yet.
4. **displayText** appears only when the alias differs from the link.
5. **backlinks** list each linking document once, self-links included.
6. **frontmatter** never carries ` + "`" + `tags` + "`" + ` or ` + "`" + `aliases` + "`" + `; ` + "`" + `image` + "`" + ` is rewritten to the image library path.
7. **resolvedLinks** is present only for datasets that enable it.
`
