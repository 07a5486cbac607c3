package mcpserver

// AnnotationFormat describes the JSON form of annotations that LLM consumers
// should follow when creating them.
const AnnotationFormat = `# Annotation Format

Annotations are JSON objects. All coordinates are image pixels with the
origin at the top-left corner; no unit conversion is applied.

## Structure

` + "```" + `jsonc
{
  "id": "tumor-1",                       // OPTIONAL on create – generated when missing
  "shape": { "type": "polygon", ... },   // REQUIRED – see shapes below
  "properties": { "layer": "roi" },      // OPTIONAL – free-form; "layer" picks a layer
  "style": { "fillOpacity": 0.5 },       // OPTIONAL – renderer hints, opacities in [0, 1]
  "maskPolarity": "positive"             // OPTIONAL – "positive" or "negative"
}
` + "```" + `

## Shapes

| type           | fields                                                      |
|----------------|-------------------------------------------------------------|
| ` + "`point`" + `        | x, y                                                        |
| ` + "`circle`" + `       | center {x, y}, radius                                       |
| ` + "`ellipse`" + `      | center {x, y}, radiusX, radiusY, rotation (radians)         |
| ` + "`rectangle`" + `    | x, y, width, height                                         |
| ` + "`line`" + `         | start {x, y}, end {x, y}                                    |
| ` + "`polygon`" + `      | points [{x, y}, ...] (implicitly closed, at least 3)        |
| ` + "`freehand`" + `     | points [{x, y}, ...], closed (bool)                         |
| ` + "`path`" + `         | points, closed, smoothing, handles                          |
| ` + "`multipolygon`" + ` | polygons [[{x, y}, ...], ...]                               |
| ` + "`image-region`" + ` | imageRef, x, y, width, height, opacity                      |

## Rules

1. **Ids are unique.** Creating an annotation with a taken id fails.
2. **Layers.** Set ` + "`properties.layer`" + ` to an existing layer id to place the
   annotation there. Otherwise layer rules decide, then the "default" layer.
3. **Locked layers** refuse creates, updates and deletes.
4. **Merge and split** work on area shapes only (circle, ellipse, rectangle,
   polygon, closed freehand, closed path, multipolygon). Points and lines are
   rejected.
5. **Every change can be undone** with the ` + "`undo`" + ` tool.

## Example

` + "```" + `json
{
  "shape": {
    "type": "polygon",
    "points": [{"x": 120, "y": 80}, {"x": 220, "y": 90}, {"x": 170, "y": 190}]
  },
  "properties": {"layer": "roi", "label": "tumor"},
  "maskPolarity": "positive"
}
` + "```" + `
`
