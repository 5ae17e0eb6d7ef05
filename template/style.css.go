package template

const StyleCSS = `
body {
  font-family: serif;
  line-height: 1.6;
  text-align: justify;
  color: #333333;
}

h1, h2 {
  font-family: sans-serif;
  text-align: center;
  page-break-after: avoid;
  color: #2c3e50;
}

h2.chapter-title {
  font-size: 1.4em;
  font-weight: 600;
  margin: 0 0 0.6em;
}

p {
  text-indent: 2em;
  margin: 0.8em 0;
}

img {
  max-width: 100%;
  height: auto;
  display: block;
  margin: 1em auto;
}

img.cover {
  max-width: 80%;
  border-radius: 12px;
}
`
